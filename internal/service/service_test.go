package service_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/metrics"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/Shivanand-hulikatti/tutormatch/internal/repository"
	"github.com/Shivanand-hulikatti/tutormatch/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	tutor    = "tutor@example.com"
	studentA = "a@example.com"
	studentB = "b@example.com"
)

var now = time.Date(2030, 5, 6, 12, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2030, 5, 7, hour, minute, 0, 0, time.UTC)
}

func newService(t *testing.T) (*service.SessionService, *repository.MemorySessionRepository, *metrics.Metrics) {
	t.Helper()
	repo := repository.NewMemorySessionRepository()
	m := metrics.New(prometheus.NewRegistry())
	svc := service.NewSessionService(repo,
		service.WithClock(func() time.Time { return now }),
		service.WithMetrics(m),
	)
	return svc, repo, m
}

func create(t *testing.T, svc *service.SessionService, start, end time.Time) *model.Session {
	t.Helper()
	s, err := svc.CreateSession(context.Background(), model.CreateSessionRequest{
		TutorEmail: tutor, Course: "COMP1010", Start: start, End: end,
	})
	require.NoError(t, err)
	return s
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	svc, repo, m := newService(t)

	existing := create(t, svc, at(10, 0), at(11, 0))
	require.NotEqual(t, model.UnsavedID, existing.ID)
	require.False(t, existing.Booked)
	require.Empty(t, existing.StudentEmail)

	_, err := svc.CreateSession(ctx, model.CreateSessionRequest{
		TutorEmail: tutor, Course: "X", Start: at(10, 30), End: at(11, 30),
	})
	require.ErrorIs(t, err, model.ErrSchedulingConflict)
	var sce *model.SchedulingConflictError
	require.True(t, errors.As(err, &sce))
	require.Equal(t, existing.ID, sce.Conflicting.ID)

	touching, err := svc.CreateSession(ctx, model.CreateSessionRequest{
		TutorEmail: tutor, Course: "X", Start: at(11, 0), End: at(12, 0),
	})
	require.NoError(t, err)
	require.NotNil(t, touching)

	// Another tutor may use the same slot.
	_, err = svc.CreateSession(ctx, model.CreateSessionRequest{
		TutorEmail: "other@example.com", Course: "X", Start: at(10, 30), End: at(11, 30),
	})
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, float64(3), testutil.ToFloat64(m.SessionsCreated))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SchedulingConflicts))
}

func TestCreateSessionInvalidArguments(t *testing.T) {
	svc, _, _ := newService(t)

	testCases := []struct {
		name string
		req  model.CreateSessionRequest
	}{
		{"missing tutor", model.CreateSessionRequest{Course: "X", Start: at(9, 0), End: at(10, 0)}},
		{"bad tutor email", model.CreateSessionRequest{TutorEmail: "nope", Course: "X", Start: at(9, 0), End: at(10, 0)}},
		{"missing course", model.CreateSessionRequest{TutorEmail: tutor, Start: at(9, 0), End: at(10, 0)}},
		{"missing start", model.CreateSessionRequest{TutorEmail: tutor, Course: "X", End: at(10, 0)}},
		{"start equals end", model.CreateSessionRequest{TutorEmail: tutor, Course: "X", Start: at(9, 0), End: at(9, 0)}},
		{"start after end", model.CreateSessionRequest{TutorEmail: tutor, Course: "X", Start: at(10, 0), End: at(9, 0)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), tc.req)
			require.ErrorIs(t, err, model.ErrInvalidArgument)
		})
	}
}

func TestCreateSessionNoOverlapInvariant(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		start := at(0, 0).Add(time.Duration(rng.Intn(48*4)) * 15 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
		_, err := svc.CreateSession(ctx, model.CreateSessionRequest{
			TutorEmail: tutor, Course: "X", Start: start, End: end,
		})
		if err != nil {
			require.ErrorIs(t, err, model.ErrSchedulingConflict)
		}
	}

	sessions, err := repo.ListByTutor(ctx, tutor)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	for i := range sessions {
		for j := i + 1; j < len(sessions); j++ {
			require.False(t, sessions[i].Overlaps(sessions[j].Start, sessions[j].End),
				"sessions %d and %d overlap", i, j)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	s := create(t, svc, at(10, 0), at(11, 0))

	err := svc.DeleteSession(ctx, "other@example.com", s.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteSession(ctx, tutor, "unknown"), model.ErrNotFound)
	require.ErrorIs(t, svc.DeleteSession(ctx, "", s.ID), model.ErrInvalidArgument)

	_, err = svc.BookSession(ctx, studentA, s.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, "TUTOR@example.com", s.ID))
	_, err = repo.GetByID(ctx, s.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	// The freed slot can be published again.
	create(t, svc, at(10, 0), at(11, 0))
}

func TestBookSession(t *testing.T) {
	ctx := context.Background()
	svc, repo, m := newService(t)
	s := create(t, svc, at(10, 0), at(11, 0))

	booked, err := svc.BookSession(ctx, studentA, s.ID)
	require.NoError(t, err)
	require.True(t, booked.Booked)
	require.Equal(t, studentA, booked.StudentEmail)

	stored, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, stored.Booked)

	_, err = svc.BookSession(ctx, studentB, s.ID)
	var abe *model.AlreadyBookedError
	require.True(t, errors.As(err, &abe))
	require.False(t, abe.ByRequester)

	_, err = svc.BookSession(ctx, studentA, s.ID)
	require.True(t, errors.As(err, &abe))
	require.True(t, abe.ByRequester)

	_, err = svc.UnbookSession(ctx, studentB, s.ID)
	require.ErrorIs(t, err, model.ErrNotBooked)

	unbooked, err := svc.UnbookSession(ctx, studentA, s.ID)
	require.NoError(t, err)
	require.False(t, unbooked.Booked)

	_, err = svc.UnbookSession(ctx, studentA, s.ID)
	require.ErrorIs(t, err, model.ErrNotBooked)

	_, err = svc.BookSession(ctx, studentB, s.ID)
	require.NoError(t, err)

	require.Equal(t, float64(2), testutil.ToFloat64(m.Bookings.WithLabelValues("book", "ok")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Bookings.WithLabelValues("book", "rejected")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Bookings.WithLabelValues("unbook", "ok")))
}

func TestBookSessionErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	s := create(t, svc, at(10, 0), at(11, 0))

	_, err := svc.BookSession(ctx, studentA, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.BookSession(ctx, "not-an-email", s.ID)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.BookSession(ctx, studentA, "")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.BookSession(ctx, tutor, s.ID)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.UnbookSession(ctx, studentA, s.ID)
	require.ErrorIs(t, err, model.ErrNotBooked)
}

func TestRefreshSessionLists(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()
	svc := service.NewSessionService(repo, service.WithClock(func() time.Time { return now }))

	add := func(start, end time.Time) *model.Session {
		s, err := model.NewSession(tutor, "X", start, end)
		require.NoError(t, err)
		require.NoError(t, s.Book(studentA))
		added, err := repo.Add(ctx, *s)
		require.NoError(t, err)
		return added
	}
	past := add(now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	// Started but not yet ended: appears in neither list.
	add(now.Add(-30*time.Minute), now.Add(30*time.Minute))
	// Ends exactly now: not strictly before now, so also in neither list.
	add(now.Add(-time.Hour), now)
	upcoming := add(now.Add(time.Hour), now.Add(2*time.Hour))

	for _, role := range []model.Role{model.RoleTutor, model.RoleStudent} {
		email := tutor
		if role == model.RoleStudent {
			email = studentA
		}
		lists, err := svc.RefreshSessionLists(ctx, role, email)
		require.NoError(t, err)
		require.Equal(t, role, lists.Role)
		require.Len(t, lists.Past, 1)
		require.Equal(t, past.ID, lists.Past[0].ID)
		require.Len(t, lists.Upcoming, 1)
		require.Equal(t, upcoming.ID, lists.Upcoming[0].ID)
	}

	empty, err := svc.RefreshSessionLists(ctx, model.RoleStudent, studentB)
	require.NoError(t, err)
	require.Empty(t, empty.Past)
	require.NotNil(t, empty.Upcoming)

	_, err = svc.RefreshSessionLists(ctx, model.Role("admin"), studentA)
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestConcurrentCreateSameSlot(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	svc, repo, _ := newService(t)

	const workers = 32
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i%4) * 15 * time.Minute
			_, err := svc.CreateSession(ctx, model.CreateSessionRequest{
				TutorEmail: tutor, Course: "X", Start: at(10, 0).Add(offset), End: at(11, 0).Add(offset),
			})
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, model.ErrSchedulingConflict)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), succeeded.Load())
	sessions, err := repo.ListByTutor(ctx, tutor)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestConcurrentBooking(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	svc, repo, _ := newService(t)
	s := create(t, svc, at(10, 0), at(11, 0))

	const workers = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			student := []string{studentA, studentB, "c@example.com", "d@example.com"}[i%4]
			_, err := svc.BookSession(ctx, student, s.ID)
			if err == nil {
				winners.Add(1)
				return
			}
			assert.ErrorIs(t, err, model.ErrAlreadyBooked)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
	stored, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, stored.Booked)
}

type failingStore struct {
	service.SessionStore
	err error
}

func (f failingStore) ListByTutor(context.Context, string) ([]model.Session, error) {
	return nil, f.err
}

func (f failingStore) GetByID(context.Context, string) (*model.Session, error) {
	return nil, f.err
}

func TestStoreErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("connection reset")
	svc := service.NewSessionService(failingStore{err: ioErr})

	_, err := svc.CreateSession(ctx, model.CreateSessionRequest{
		TutorEmail: tutor, Course: "X", Start: at(9, 0), End: at(10, 0),
	})
	require.Equal(t, ioErr, err)
	require.False(t, model.IsDomainError(err))

	_, err = svc.BookSession(ctx, studentA, "id")
	require.Equal(t, ioErr, err)

	require.Equal(t, ioErr, svc.DeleteSession(ctx, tutor, "id"))
}

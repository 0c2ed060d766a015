package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/database"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/Shivanand-hulikatti/tutormatch/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

type sessionStore interface {
	Add(ctx context.Context, s model.Session) (*model.Session, error)
	GetByID(ctx context.Context, id string) (*model.Session, error)
	ListByTutor(ctx context.Context, tutorEmail string) ([]model.Session, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
	Update(ctx context.Context, s model.Session) error
	Remove(ctx context.Context, id string) error
}

type personStore interface {
	GetTutorByEmail(ctx context.Context, email string) (*model.Tutor, error)
	GetStudentByEmail(ctx context.Context, email string) (*model.Student, error)
	UpsertTutor(ctx context.Context, t model.Tutor) error
	UpsertStudent(ctx context.Context, s model.Student) error
}

type store struct {
	name     string
	sessions sessionStore
	people   personStore
}

// postgresDSNEnv names a PostgreSQL database the contract tests may wipe.
// The postgres store is skipped when it is unset.
const postgresDSNEnv = "TUTORMATCH_TEST_POSTGRES_DSN"

func storesToTest(t *testing.T) []store {
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(context.Background(), db))

	stores := []store{
		{
			name:     "memory",
			sessions: repository.NewMemorySessionRepository(),
			people:   repository.NewMemoryPersonRepository(),
		},
		{
			name:     "sqlite",
			sessions: repository.NewSQLiteSessionRepository(db),
			people:   repository.NewSQLitePersonRepository(db),
		},
	}

	if pool := openPostgres(t); pool != nil {
		stores = append(stores, store{
			name:     "postgres",
			sessions: repository.NewSessionRepository(pool),
			people:   repository.NewPersonRepository(pool),
		})
	}
	return stores
}

func openPostgres(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Logf("%s not set, skipping postgres store", postgresDSNEnv)
		return nil
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.MigratePostgres(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE sessions, tutors, students RESTART IDENTITY`)
	require.NoError(t, err)
	return pool
}

func session(t *testing.T, tutor string, hour int) model.Session {
	t.Helper()
	start := time.Date(2030, 1, 2, hour, 0, 0, 0, time.UTC)
	s, err := model.NewSession(tutor, "COMP1010", start, start.Add(time.Hour))
	require.NoError(t, err)
	return *s
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()

	for _, st := range storesToTest(t) {
		t.Run(st.name, func(t *testing.T) {
			first, err := st.sessions.Add(ctx, session(t, "t1@example.com", 9))
			require.NoError(t, err)
			require.NotEqual(t, model.UnsavedID, first.ID)
			require.False(t, first.CreatedAt.IsZero())

			second, err := st.sessions.Add(ctx, session(t, "t2@example.com", 10))
			require.NoError(t, err)
			third, err := st.sessions.Add(ctx, session(t, "t1@example.com", 11))
			require.NoError(t, err)

			got, err := st.sessions.GetByID(ctx, first.ID)
			require.NoError(t, err)
			require.Equal(t, first.TutorEmail, got.TutorEmail)
			require.True(t, first.Start.Equal(got.Start))
			require.True(t, first.End.Equal(got.End))
			require.False(t, got.Booked)

			all, err := st.sessions.List(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{first.ID, second.ID, third.ID}, ids(all))

			byTutor, err := st.sessions.ListByTutor(ctx, "t1@example.com")
			require.NoError(t, err)
			require.Equal(t, []string{first.ID, third.ID}, ids(byTutor))

			require.NoError(t, got.Book("s@example.com"))
			require.NoError(t, st.sessions.Update(ctx, *got))

			reloaded, err := st.sessions.GetByID(ctx, first.ID)
			require.NoError(t, err)
			require.True(t, reloaded.Booked)
			require.Equal(t, "s@example.com", reloaded.StudentEmail)

			byStudent, err := st.sessions.ListByStudent(ctx, "s@example.com")
			require.NoError(t, err)
			require.Equal(t, []string{first.ID}, ids(byStudent))

			require.NoError(t, reloaded.Unbook("s@example.com"))
			require.NoError(t, st.sessions.Update(ctx, *reloaded))
			byStudent, err = st.sessions.ListByStudent(ctx, "s@example.com")
			require.NoError(t, err)
			require.Empty(t, byStudent)

			require.NoError(t, st.sessions.Remove(ctx, second.ID))
			_, err = st.sessions.GetByID(ctx, second.ID)
			require.ErrorIs(t, err, model.ErrNotFound)
			require.ErrorIs(t, st.sessions.Remove(ctx, second.ID), model.ErrNotFound)

			missing := session(t, "t1@example.com", 15)
			missing.ID = "does-not-exist"
			require.ErrorIs(t, st.sessions.Update(ctx, missing), model.ErrNotFound)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	added, err := repo.Add(ctx, session(t, "t@example.com", 9))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, added.ID)
	require.NoError(t, err)
	require.NoError(t, got.Book("s@example.com"))

	stored, err := repo.GetByID(ctx, added.ID)
	require.NoError(t, err)
	require.False(t, stored.Booked)
}

func TestPersonStore(t *testing.T) {
	ctx := context.Background()

	for _, st := range storesToTest(t) {
		t.Run(st.name, func(t *testing.T) {
			_, err := st.people.GetTutorByEmail(ctx, "t@example.com")
			require.ErrorIs(t, err, model.ErrNotFound)
			_, err = st.people.GetStudentByEmail(ctx, "s@example.com")
			require.ErrorIs(t, err, model.ErrNotFound)

			require.NoError(t, st.people.UpsertTutor(ctx, model.Tutor{
				Email:  "T@example.com",
				Name:   "Tess",
				Grades: map[string]string{"COMP1010": "4.8", "MATH1000": "N/A"},
			}))
			require.NoError(t, st.people.UpsertTutor(ctx, model.Tutor{
				Email:  "t@example.com",
				Name:   "Tess T.",
				Grades: map[string]string{"COMP1010": "4.9"},
			}))
			require.NoError(t, st.people.UpsertStudent(ctx, model.Student{Email: "s@example.com", Name: "Sam"}))

			tutor, err := st.people.GetTutorByEmail(ctx, "t@example.com")
			require.NoError(t, err)
			require.Equal(t, "Tess T.", tutor.Name)
			require.Equal(t, map[string]string{"COMP1010": "4.9"}, tutor.Grades)

			student, err := st.people.GetStudentByEmail(ctx, "s@example.com")
			require.NoError(t, err)
			require.Equal(t, "Sam", student.Name)
		})
	}
}

func ids(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

// Package service implements the session lifecycle: publishing sessions
// without double-booking a tutor, booking and unbooking on behalf of
// students, and splitting a person's sessions into past and upcoming.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/metrics"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// SessionStore is the durable source of truth for sessions.
type SessionStore interface {
	Add(ctx context.Context, s model.Session) (*model.Session, error)
	GetByID(ctx context.Context, id string) (*model.Session, error)
	ListByTutor(ctx context.Context, tutorEmail string) ([]model.Session, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]model.Session, error)
	Update(ctx context.Context, s model.Session) error
	Remove(ctx context.Context, id string) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Option configures a SessionService.
type Option func(*SessionService)

// WithClock overrides the time source used for past/upcoming partitioning.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithMetrics records lifecycle events on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SessionService) { s.metrics = m }
}

// SessionService orchestrates session creation, deletion and booking.
// It keeps no session state between calls: every operation re-reads the
// store, and work touching one tutor's sessions runs under that tutor's lock.
type SessionService struct {
	store   SessionStore
	locks   *keyedMutex
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewSessionService constructs a SessionService with its dependencies.
func NewSessionService(store SessionStore, opts ...Option) *SessionService {
	s := &SessionService{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession validates the request, checks the tutor's existing sessions
// for overlap and persists a new unbooked session.
func (s *SessionService) CreateSession(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error) {
	req.TutorEmail = model.NormalizeEmail(req.TutorEmail)
	req.Course = strings.TrimSpace(req.Course)
	if err := validate.Struct(req); err != nil {
		return nil, invalidArgument(err)
	}

	session, err := model.NewSession(req.TutorEmail, req.Course, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, session.TutorEmail)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.store.ListByTutor(ctx, session.TutorEmail)
	if err != nil {
		return nil, err
	}
	if conflict, ok := FindConflict(existing, session.Start, session.End); ok {
		if s.metrics != nil {
			s.metrics.SchedulingConflicts.Inc()
		}
		log.WithFields(log.Fields{
			"tutor":       session.TutorEmail,
			"start":       session.Start,
			"end":         session.End,
			"conflicting": conflict.ID,
		}).Debug("session rejected: scheduling conflict")
		return nil, &model.SchedulingConflictError{Conflicting: *conflict}
	}

	created, err := s.store.Add(ctx, *session)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	log.WithFields(log.Fields{
		"session": created.ID,
		"tutor":   created.TutorEmail,
		"course":  created.Course,
	}).Info("session created")
	return created, nil
}

// DeleteSession removes one of the tutor's sessions. Ownership is checked
// against the tutor's own session list. Refunding a booked session is left
// to the caller.
func (s *SessionService) DeleteSession(ctx context.Context, tutorEmail, sessionID string) error {
	tutorEmail = model.NormalizeEmail(tutorEmail)
	if tutorEmail == "" {
		return fmt.Errorf("%w: tutor email is required", model.ErrInvalidArgument)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", model.ErrInvalidArgument)
	}

	unlock, err := s.locks.Lock(ctx, tutorEmail)
	if err != nil {
		return err
	}
	defer unlock()

	owned, err := s.store.ListByTutor(ctx, tutorEmail)
	if err != nil {
		return err
	}
	var target *model.Session
	for i := range owned {
		if owned[i].ID == sessionID {
			target = &owned[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: session %s is not among %s's sessions", model.ErrNotFound, sessionID, tutorEmail)
	}

	if err := s.store.Remove(ctx, sessionID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SessionsDeleted.Inc()
	}
	entry := log.WithFields(log.Fields{"session": sessionID, "tutor": tutorEmail})
	if target.Booked {
		entry.WithField("student", target.StudentEmail).Warn("booked session deleted")
	} else {
		entry.Info("session deleted")
	}
	return nil
}

// BookSession attaches the student to the session and persists it.
// An already booked session yields *model.AlreadyBookedError.
func (s *SessionService) BookSession(ctx context.Context, studentEmail, sessionID string) (*model.Session, error) {
	studentEmail = model.NormalizeEmail(studentEmail)
	return s.transition(ctx, "book", studentEmail, sessionID, func(session *model.Session) error {
		if session.TutorEmail == studentEmail {
			return fmt.Errorf("%w: tutors cannot book their own session", model.ErrInvalidArgument)
		}
		return session.Book(studentEmail)
	})
}

// UnbookSession releases the student's booking and persists it.
func (s *SessionService) UnbookSession(ctx context.Context, studentEmail, sessionID string) (*model.Session, error) {
	studentEmail = model.NormalizeEmail(studentEmail)
	return s.transition(ctx, "unbook", studentEmail, sessionID, func(session *model.Session) error {
		return session.Unbook(studentEmail)
	})
}

func (s *SessionService) transition(
	ctx context.Context, action, studentEmail, sessionID string, apply func(*model.Session) error,
) (*model.Session, error) {
	if err := validate.Struct(model.BookingRequest{StudentEmail: studentEmail}); err != nil {
		return nil, invalidArgument(err)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", model.ErrInvalidArgument)
	}

	// The first read only resolves which tutor lock to take; the session is
	// read again under the lock.
	peek, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		s.recordBooking(action, err)
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, peek.TutorEmail)
	if err != nil {
		s.recordBooking(action, err)
		return nil, err
	}
	defer unlock()

	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		s.recordBooking(action, err)
		return nil, err
	}
	if err := apply(session); err != nil {
		s.recordBooking(action, err)
		log.WithFields(log.Fields{
			"session": sessionID,
			"student": studentEmail,
		}).WithError(err).Debugf("%s rejected", action)
		return nil, err
	}
	if err := s.store.Update(ctx, *session); err != nil {
		s.recordBooking(action, err)
		return nil, err
	}

	s.recordBooking(action, nil)
	log.WithFields(log.Fields{
		"session": session.ID,
		"tutor":   session.TutorEmail,
		"student": studentEmail,
	}).Infof("session %sed", action)
	return session, nil
}

// RefreshSessionLists splits the person's sessions into past (ended before
// now) and upcoming (starting after now). A session in progress belongs to
// neither list.
func (s *SessionService) RefreshSessionLists(ctx context.Context, role model.Role, email string) (*model.SessionLists, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", model.ErrInvalidArgument)
	}

	var (
		sessions []model.Session
		err      error
	)
	switch role {
	case model.RoleTutor:
		sessions, err = s.store.ListByTutor(ctx, email)
	case model.RoleStudent:
		sessions, err = s.store.ListByStudent(ctx, email)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrInvalidArgument, role)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	lists := &model.SessionLists{
		Email:    email,
		Role:     role,
		Past:     []model.Session{},
		Upcoming: []model.Session{},
	}
	for _, session := range sessions {
		switch {
		case session.End.Before(now):
			lists.Past = append(lists.Past, session)
		case session.Start.After(now):
			lists.Upcoming = append(lists.Upcoming, session)
		}
	}
	return lists, nil
}

func (s *SessionService) recordBooking(action string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case model.IsDomainError(err):
		result = "rejected"
	default:
		result = "error"
	}
	s.metrics.Bookings.WithLabelValues(action, result).Inc()
}

func invalidArgument(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", model.ErrInvalidArgument, strings.Join(fields, ", "))
}

// Package matching selects and ranks bookable sessions for a student's search.
package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/metrics"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	log "github.com/sirupsen/logrus"
)

// SessionSource lists every stored session in insertion order.
type SessionSource interface {
	List(ctx context.Context) ([]model.Session, error)
}

// TutorLookup resolves tutor grade data. It is never written to.
type TutorLookup interface {
	GetTutorByEmail(ctx context.Context, email string) (*model.Tutor, error)
}

// Filter is a ranking strategy applied to the base candidate list.
// Implementations must not modify the slice they are given.
type Filter interface {
	Apply(ctx context.Context, sessions []model.Session, q model.SearchQuery) ([]model.Session, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to drop past sessions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records result counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFilter registers f under kind, replacing any built-in strategy.
func WithFilter(kind model.FilterKind, f Filter) Option {
	return func(e *Engine) { e.filters[kind] = f }
}

// Engine computes the bookable candidate set and dispatches to a Filter.
type Engine struct {
	sessions SessionSource
	filters  map[model.FilterKind]Filter
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewEngine constructs an Engine with the time, course-grade and
// tutor-rating strategies registered.
func NewEngine(sessions SessionSource, tutors TutorLookup, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		filters: map[model.FilterKind]Filter{
			model.FilterTime:        TimeFilter{},
			model.FilterCourseGrade: NewCourseGradeFilter(tutors),
			model.FilterTutorRating: NewTutorRatingFilter(tutors),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the unbooked future sessions for the course, excluding the
// student's own sessions, ranked by the requested filter. An unknown or
// empty filter returns the candidates in store order.
func (e *Engine) Search(ctx context.Context, q model.SearchQuery) ([]model.Session, error) {
	q.Course = strings.TrimSpace(q.Course)
	q.StudentEmail = model.NormalizeEmail(q.StudentEmail)
	if q.Course == "" {
		return nil, fmt.Errorf("%w: course is required", model.ErrInvalidArgument)
	}

	all, err := e.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates := FutureOnly(BaseFilter(all, q), e.now())

	result := candidates
	filter, ok := e.filters[q.Filter]
	if ok {
		result, err = filter.Apply(ctx, candidates, q)
		if err != nil {
			return nil, err
		}
	}

	label := string(q.Filter)
	if !ok {
		label = "none"
	}
	if e.metrics != nil {
		e.metrics.SearchResults.WithLabelValues(label).Observe(float64(len(result)))
	}
	log.WithFields(log.Fields{
		"course":  q.Course,
		"student": q.StudentEmail,
		"filter":  label,
		"results": len(result),
	}).Debug("session search")
	return result, nil
}

// BaseFilter keeps unbooked sessions for the query's course whose tutor is
// not the searching student. Input order is preserved.
func BaseFilter(sessions []model.Session, q model.SearchQuery) []model.Session {
	student := model.NormalizeEmail(q.StudentEmail)
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Booked || !s.MatchesCourse(q.Course) {
			continue
		}
		if student != "" && model.NormalizeEmail(s.TutorEmail) == student {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FutureOnly keeps sessions starting strictly after now.
func FutureOnly(sessions []model.Session, now time.Time) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Start.After(now) {
			out = append(out, s)
		}
	}
	return out
}

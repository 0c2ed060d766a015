package matching

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
)

// TimeFilter keeps sessions that intersect the query window, inclusive of
// both edges, ordered by start time. Without a complete window it passes
// its input through unchanged.
type TimeFilter struct{}

func (TimeFilter) Apply(_ context.Context, sessions []model.Session, q model.SearchQuery) ([]model.Session, error) {
	if q.WindowStart == nil || q.WindowEnd == nil {
		return slices.Clone(sessions), nil
	}
	from, to := *q.WindowStart, *q.WindowEnd

	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.End.Before(from) && !s.Start.After(to) {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Session) int {
		return a.Start.Compare(b.Start)
	})
	return out, nil
}

// CourseGradeFilter ranks sessions by the tutor's grade for the searched
// course, best first. Sessions whose tutor has no numeric grade for the
// course, or is unknown, are dropped.
type CourseGradeFilter struct {
	tutors TutorLookup
}

func NewCourseGradeFilter(tutors TutorLookup) CourseGradeFilter {
	return CourseGradeFilter{tutors: tutors}
}

func (f CourseGradeFilter) Apply(ctx context.Context, sessions []model.Session, q model.SearchQuery) ([]model.Session, error) {
	type graded struct {
		session model.Session
		grade   float64
	}

	cache := newTutorCache(f.tutors)
	ranked := make([]graded, 0, len(sessions))
	for _, s := range sessions {
		tutor, err := cache.get(ctx, s.TutorEmail)
		if err != nil {
			return nil, err
		}
		if tutor == nil {
			continue
		}
		grade, ok := tutor.GradeFor(q.Course)
		if !ok {
			continue
		}
		ranked = append(ranked, graded{session: s, grade: grade})
	}

	slices.SortStableFunc(ranked, func(a, b graded) int {
		return cmp.Compare(b.grade, a.grade)
	})
	out := make([]model.Session, len(ranked))
	for i, r := range ranked {
		out[i] = r.session
	}
	return out, nil
}

// TutorRatingFilter ranks sessions by the tutor's overall rating, best
// first. Unknown tutors rank as 0.
type TutorRatingFilter struct {
	tutors TutorLookup
}

func NewTutorRatingFilter(tutors TutorLookup) TutorRatingFilter {
	return TutorRatingFilter{tutors: tutors}
}

func (f TutorRatingFilter) Apply(ctx context.Context, sessions []model.Session, _ model.SearchQuery) ([]model.Session, error) {
	cache := newTutorCache(f.tutors)
	ratings := make(map[string]float64, len(sessions))
	for _, s := range sessions {
		if _, ok := ratings[s.TutorEmail]; ok {
			continue
		}
		tutor, err := cache.get(ctx, s.TutorEmail)
		if err != nil {
			return nil, err
		}
		if tutor != nil {
			ratings[s.TutorEmail] = tutor.Rating()
		} else {
			ratings[s.TutorEmail] = 0
		}
	}

	out := slices.Clone(sessions)
	slices.SortStableFunc(out, func(a, b model.Session) int {
		return cmp.Compare(ratings[b.TutorEmail], ratings[a.TutorEmail])
	})
	return out, nil
}

// tutorCache memoises lookups for the duration of one Apply call.
type tutorCache struct {
	lookup TutorLookup
	seen   map[string]*model.Tutor
}

func newTutorCache(lookup TutorLookup) *tutorCache {
	return &tutorCache{lookup: lookup, seen: make(map[string]*model.Tutor)}
}

// get returns nil without error when the tutor does not exist.
func (c *tutorCache) get(ctx context.Context, email string) (*model.Tutor, error) {
	if t, ok := c.seen[email]; ok {
		return t, nil
	}
	t, err := c.lookup.GetTutorByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		t, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.seen[email] = t
	return t, nil
}

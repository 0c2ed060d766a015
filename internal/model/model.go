// Package model defines the core domain types for the tutoring marketplace.
package model

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// UnsavedID is the id carried by a session that has not been persisted yet.
// Stores replace it with a generated id on Add.
const UnsavedID = ""

// NoGrade is the sentinel a tutor record uses for a course without a grade.
const NoGrade = "N/A"

// Session is a tutor's time slot for one course, optionally booked by a student.
//
// Booked is true if and only if StudentEmail is set. Only Book and Unbook
// change either field.
type Session struct {
	ID           string    `json:"id"`
	TutorEmail   string    `json:"tutor_email"`
	StudentEmail string    `json:"student_email,omitempty"`
	Course       string    `json:"course"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Booked       bool      `json:"booked"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSession returns an unbooked, unsaved session. It rejects empty
// identifiers and intervals where start is not strictly before end.
func NewSession(tutorEmail, course string, start, end time.Time) (*Session, error) {
	tutorEmail = NormalizeEmail(tutorEmail)
	course = strings.TrimSpace(course)
	if tutorEmail == "" {
		return nil, fmt.Errorf("%w: tutor email is required", ErrInvalidArgument)
	}
	if course == "" {
		return nil, fmt.Errorf("%w: course is required", ErrInvalidArgument)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidArgument)
	}
	return &Session{
		ID:         UnsavedID,
		TutorEmail: tutorEmail,
		Course:     course,
		Start:      start.UTC(),
		End:        end.UTC(),
	}, nil
}

// Book attaches the student to the session.
func (s *Session) Book(studentEmail string) error {
	studentEmail = NormalizeEmail(studentEmail)
	if studentEmail == "" {
		return fmt.Errorf("%w: student email is required", ErrInvalidArgument)
	}
	if s.Booked {
		return &AlreadyBookedError{
			SessionID:   s.ID,
			ByRequester: s.StudentEmail == studentEmail,
		}
	}
	s.StudentEmail = studentEmail
	s.Booked = true
	return nil
}

// Unbook detaches the student. Only the student holding the booking can
// release it; for anyone else the session counts as not booked.
func (s *Session) Unbook(studentEmail string) error {
	studentEmail = NormalizeEmail(studentEmail)
	if !s.Booked {
		return fmt.Errorf("%w: session %s", ErrNotBooked, s.ID)
	}
	if s.StudentEmail != studentEmail {
		return fmt.Errorf("%w: session %s is not booked by %s", ErrNotBooked, s.ID, studentEmail)
	}
	s.StudentEmail = ""
	s.Booked = false
	return nil
}

// Overlaps reports whether the half-open intervals [start, end) of the
// session and the candidate intersect. Touching endpoints do not overlap.
func (s *Session) Overlaps(start, end time.Time) bool {
	return start.Before(s.End) && end.After(s.Start)
}

// MatchesCourse compares course identifiers case-insensitively.
func (s *Session) MatchesCourse(course string) bool {
	return strings.EqualFold(strings.TrimSpace(s.Course), strings.TrimSpace(course))
}

// Role selects which side of a booking a person is on.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Tutor is the subset of a tutor profile used for matching.
type Tutor struct {
	Email  string            `json:"email" yaml:"email"`
	Name   string            `json:"name" yaml:"name"`
	Grades map[string]string `json:"grades" yaml:"grades"`
}

// GradeFor returns the tutor's numeric grade for a course. The second value
// is false when the course is absent, marked N/A, or not numeric.
// An exact key wins; otherwise the first case-insensitive match in key order
// is used.
func (t *Tutor) GradeFor(course string) (float64, bool) {
	course = strings.TrimSpace(course)
	if g, ok := t.Grades[course]; ok {
		return parseGrade(g)
	}
	for _, c := range slices.Sorted(maps.Keys(t.Grades)) {
		if strings.EqualFold(strings.TrimSpace(c), course) {
			return parseGrade(t.Grades[c])
		}
	}
	return 0, false
}

// Rating is the mean of the tutor's numeric course grades, or 0 if none.
// It is computed on every call and never stored. Grades are summed in key
// order so equal inputs always give the same value.
func (t *Tutor) Rating() float64 {
	var sum float64
	var n int
	for _, c := range slices.Sorted(maps.Keys(t.Grades)) {
		if v, ok := parseGrade(t.Grades[c]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func parseGrade(g string) (float64, bool) {
	g = strings.TrimSpace(g)
	if g == "" || strings.EqualFold(g, NoGrade) {
		return 0, false
	}
	v, err := strconv.ParseFloat(g, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Student is a person who books sessions.
type Student struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}

// SessionLists partitions a person's sessions for display.
type SessionLists struct {
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Past     []Session `json:"past"`
	Upcoming []Session `json:"upcoming"`
}

// FilterKind names a ranking strategy for search.
type FilterKind string

const (
	FilterNone        FilterKind = ""
	FilterTime        FilterKind = "time"
	FilterCourseGrade FilterKind = "grade"
	FilterTutorRating FilterKind = "rating"
)

// SearchQuery is the context of a student's session search.
type SearchQuery struct {
	Course       string
	StudentEmail string
	WindowStart  *time.Time
	WindowEnd    *time.Time
	Filter       FilterKind
}

// CreateSessionRequest is the payload for publishing a new session.
type CreateSessionRequest struct {
	TutorEmail string    `json:"tutor_email" validate:"required,email"`
	Course     string    `json:"course" validate:"required,max=64"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required"`
}

// BookingRequest is the payload for booking or unbooking a session.
type BookingRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/google/uuid"
)

// MemorySessionRepository keeps sessions in process memory. Every read and
// write copies the session, so callers never share state with the store.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions []model.Session
}

// NewMemorySessionRepository constructs an empty MemorySessionRepository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{}
}

func (r *MemorySessionRepository) Add(_ context.Context, s model.Session) (*model.Session, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return &s, nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		s := r.sessions[i]
		return &s, nil
	}
	return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
}

func (r *MemorySessionRepository) ListByTutor(_ context.Context, tutorEmail string) ([]model.Session, error) {
	return r.filter(func(s model.Session) bool { return s.TutorEmail == tutorEmail }), nil
}

func (r *MemorySessionRepository) ListByStudent(_ context.Context, studentEmail string) ([]model.Session, error) {
	return r.filter(func(s model.Session) bool { return s.Booked && s.StudentEmail == studentEmail }), nil
}

func (r *MemorySessionRepository) List(_ context.Context) ([]model.Session, error) {
	return r.filter(func(model.Session) bool { return true }), nil
}

func (r *MemorySessionRepository) Update(_ context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(s.ID)
	if i < 0 {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}
	s.CreatedAt = r.sessions[i].CreatedAt
	r.sessions[i] = s
	return nil
}

func (r *MemorySessionRepository) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
	return nil
}

// indexOf must be called with mu held.
func (r *MemorySessionRepository) indexOf(id string) int {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *MemorySessionRepository) filter(keep func(model.Session) bool) []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Session
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// MemoryPersonRepository keeps tutors and students in process memory.
type MemoryPersonRepository struct {
	mu       sync.RWMutex
	tutors   map[string]model.Tutor
	students map[string]model.Student
}

// NewMemoryPersonRepository constructs an empty MemoryPersonRepository.
func NewMemoryPersonRepository() *MemoryPersonRepository {
	return &MemoryPersonRepository{
		tutors:   make(map[string]model.Tutor),
		students: make(map[string]model.Student),
	}
}

func (r *MemoryPersonRepository) GetTutorByEmail(_ context.Context, email string) (*model.Tutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tutors[model.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("tutor %s: %w", email, model.ErrNotFound)
	}
	t.Grades = copyGrades(t.Grades)
	return &t, nil
}

func (r *MemoryPersonRepository) GetStudentByEmail(_ context.Context, email string) (*model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[model.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", email, model.ErrNotFound)
	}
	return &s, nil
}

func (r *MemoryPersonRepository) UpsertTutor(_ context.Context, t model.Tutor) error {
	t.Email = model.NormalizeEmail(t.Email)
	t.Grades = copyGrades(t.Grades)

	r.mu.Lock()
	r.tutors[t.Email] = t
	r.mu.Unlock()
	return nil
}

func (r *MemoryPersonRepository) UpsertStudent(_ context.Context, s model.Student) error {
	s.Email = model.NormalizeEmail(s.Email)

	r.mu.Lock()
	r.students[s.Email] = s
	r.mu.Unlock()
	return nil
}

func copyGrades(g map[string]string) map[string]string {
	out := make(map[string]string, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

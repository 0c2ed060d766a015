// Package repository implements session and person storage.
// The PostgreSQL implementation uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, tutor_email, student_email, course, start_at, end_at, booked, created_at`

// SessionRepository handles persistence for sessions in PostgreSQL.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Add inserts the session and returns it with a generated UUID.
func (r *SessionRepository) Add(ctx context.Context, s model.Session) (*model.Session, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.TutorEmail, nullable(s.StudentEmail), s.Course, s.Start, s.End, s.Booked, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &s, nil
}

// GetByID returns a single session or model.ErrNotFound.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListByTutor returns the tutor's sessions in insertion order.
func (r *SessionRepository) ListByTutor(ctx context.Context, tutorEmail string) ([]model.Session, error) {
	return r.list(ctx, `WHERE tutor_email = $1`, tutorEmail)
}

// ListByStudent returns the sessions booked by the student in insertion order.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentEmail string) ([]model.Session, error) {
	return r.list(ctx, `WHERE student_email = $1`, studentEmail)
}

// List returns every session in insertion order.
func (r *SessionRepository) List(ctx context.Context) ([]model.Session, error) {
	return r.list(ctx, ``)
}

func (r *SessionRepository) list(ctx context.Context, where string, args ...any) ([]model.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions `+where+` ORDER BY seq ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Update writes the booking state of an existing session.
func (r *SessionRepository) Update(ctx context.Context, s model.Session) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions
		 SET student_email = $2, booked = $3, course = $4, start_at = $5, end_at = $6
		 WHERE id = $1`,
		s.ID, nullable(s.StudentEmail), s.Booked, s.Course, s.Start, s.End,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}
	return nil
}

// Remove deletes the session.
func (r *SessionRepository) Remove(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s       model.Session
		student *string
	)
	if err := row.Scan(
		&s.ID, &s.TutorEmail, &student, &s.Course, &s.Start, &s.End, &s.Booked, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	if student != nil {
		s.StudentEmail = *student
	}
	s.Start, s.End, s.CreatedAt = s.Start.UTC(), s.End.UTC(), s.CreatedAt.UTC()
	return &s, nil
}

// PersonRepository resolves tutors and students in PostgreSQL.
type PersonRepository struct {
	db *pgxpool.Pool
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *pgxpool.Pool) *PersonRepository {
	return &PersonRepository{db: db}
}

// GetTutorByEmail returns the tutor or model.ErrNotFound.
func (r *PersonRepository) GetTutorByEmail(ctx context.Context, email string) (*model.Tutor, error) {
	var t model.Tutor
	err := r.db.QueryRow(ctx,
		`SELECT email, name, grades FROM tutors WHERE email = $1`, model.NormalizeEmail(email),
	).Scan(&t.Email, &t.Name, &t.Grades)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tutor %s: %w", email, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	return &t, nil
}

// GetStudentByEmail returns the student or model.ErrNotFound.
func (r *PersonRepository) GetStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	var s model.Student
	err := r.db.QueryRow(ctx,
		`SELECT email, name FROM students WHERE email = $1`, model.NormalizeEmail(email),
	).Scan(&s.Email, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("student %s: %w", email, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

// UpsertTutor inserts or replaces a tutor record.
func (r *PersonRepository) UpsertTutor(ctx context.Context, t model.Tutor) error {
	if t.Grades == nil {
		t.Grades = map[string]string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO tutors (email, name, grades) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, grades = EXCLUDED.grades`,
		model.NormalizeEmail(t.Email), t.Name, t.Grades,
	)
	if err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}
	return nil
}

// UpsertStudent inserts or replaces a student record.
func (r *PersonRepository) UpsertStudent(ctx context.Context, s model.Student) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO students (email, name) VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name`,
		model.NormalizeEmail(s.Email), s.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

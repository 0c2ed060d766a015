package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/google/uuid"
)

// SQLiteSessionRepository handles persistence for sessions in SQLite.
// Timestamps are stored as unix nanoseconds.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSQLiteSessionRepository constructs a SQLiteSessionRepository.
func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Add(ctx context.Context, s model.Session) (*model.Session, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TutorEmail, nullString(s.StudentEmail), s.Course,
		s.Start.UnixNano(), s.End.UnixNano(), s.Booked, s.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &s, nil
}

func (r *SQLiteSessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := scanSQLiteSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SQLiteSessionRepository) ListByTutor(ctx context.Context, tutorEmail string) ([]model.Session, error) {
	return r.list(ctx, `WHERE tutor_email = ?`, tutorEmail)
}

func (r *SQLiteSessionRepository) ListByStudent(ctx context.Context, studentEmail string) ([]model.Session, error) {
	return r.list(ctx, `WHERE student_email = ?`, studentEmail)
}

func (r *SQLiteSessionRepository) List(ctx context.Context) ([]model.Session, error) {
	return r.list(ctx, ``)
}

func (r *SQLiteSessionRepository) list(ctx context.Context, where string, args ...any) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions `+where+` ORDER BY seq ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteSessionRepository) Update(ctx context.Context, s model.Session) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET student_email = ?, booked = ?, course = ?, start_at = ?, end_at = ?
		 WHERE id = ?`,
		nullString(s.StudentEmail), s.Booked, s.Course, s.Start.UnixNano(), s.End.UnixNano(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectAffected(res, s.ID)
}

func (r *SQLiteSessionRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*model.Session, error) {
	var (
		s                 model.Session
		student           sql.NullString
		start, end, added int64
	)
	if err := row.Scan(
		&s.ID, &s.TutorEmail, &student, &s.Course, &start, &end, &s.Booked, &added,
	); err != nil {
		return nil, err
	}
	s.StudentEmail = student.String
	s.Start = time.Unix(0, start).UTC()
	s.End = time.Unix(0, end).UTC()
	s.CreatedAt = time.Unix(0, added).UTC()
	return &s, nil
}

func expectAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SQLitePersonRepository resolves tutors and students in SQLite.
// Grades are stored as a JSON object.
type SQLitePersonRepository struct {
	db *sql.DB
}

// NewSQLitePersonRepository constructs a SQLitePersonRepository.
func NewSQLitePersonRepository(db *sql.DB) *SQLitePersonRepository {
	return &SQLitePersonRepository{db: db}
}

func (r *SQLitePersonRepository) GetTutorByEmail(ctx context.Context, email string) (*model.Tutor, error) {
	var (
		t      model.Tutor
		grades string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT email, name, grades FROM tutors WHERE email = ?`, model.NormalizeEmail(email),
	).Scan(&t.Email, &t.Name, &grades)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tutor %s: %w", email, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	if err := json.Unmarshal([]byte(grades), &t.Grades); err != nil {
		return nil, fmt.Errorf("decode tutor grades: %w", err)
	}
	return &t, nil
}

func (r *SQLitePersonRepository) GetStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	var s model.Student
	err := r.db.QueryRowContext(ctx,
		`SELECT email, name FROM students WHERE email = ?`, model.NormalizeEmail(email),
	).Scan(&s.Email, &s.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student %s: %w", email, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

func (r *SQLitePersonRepository) UpsertTutor(ctx context.Context, t model.Tutor) error {
	if t.Grades == nil {
		t.Grades = map[string]string{}
	}
	grades, err := json.Marshal(t.Grades)
	if err != nil {
		return fmt.Errorf("encode tutor grades: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tutors (email, name, grades) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET name = excluded.name, grades = excluded.grades`,
		model.NormalizeEmail(t.Email), t.Name, string(grades),
	)
	if err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}
	return nil
}

func (r *SQLitePersonRepository) UpsertStudent(ctx context.Context, s model.Student) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO students (email, name) VALUES (?, ?)
		 ON CONFLICT (email) DO UPDATE SET name = excluded.name`,
		model.NormalizeEmail(s.Email), s.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

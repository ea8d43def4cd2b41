// Package store persists courses in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// Sentinel errors. Their messages are matched by core.MapError.
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrCourseExists   = errors.New("course already exists")
	ErrCodeConflict   = errors.New("code already in use")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// QueryTimeout bounds a single store call.
var QueryTimeout = 30 * time.Second

// DBTX is the subset of *pgxpool.Pool and pgx.Tx used by Store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Course is a stored course row.
type Course struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record returns the course as a core.CourseRecord.
func (c Course) Record() core.CourseRecord {
	return core.CourseRecord{Code: c.Code, Name: c.Name}
}

// Store provides course persistence.
type Store struct {
	db DBTX
}

// New creates a Store on db, usually a *pgxpool.Pool.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// canonicalCode is the stored form of a code: trimmed and uppercased.
func canonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const courseColumns = `id, code, name, created_at, updated_at`

func scanCourse(row pgx.Row) (Course, error) {
	var (
		id        pgtype.UUID
		c         Course
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &c.Code, &c.Name, &createdAt, &updatedAt); err != nil {
		return Course{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return c, nil
}

// List returns every course ordered by code.
func (s *Store) List(ctx context.Context) ([]Course, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY code, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	return courses, nil
}

// Get returns the oldest course whose normalized code matches code.
func (s *Store) Get(ctx context.Context, code string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	return getCourse(ctx, s.db, code)
}

func getCourse(ctx context.Context, db DBTX, code string) (Course, error) {
	row := db.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE `+normalizedCode+` = $1
		 ORDER BY created_at
		 LIMIT 1`,
		core.NormalizeCode(code),
	)

	c, err := scanCourse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, core.NormalizeCode(code))
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// Create inserts a course. It returns ErrCourseExists when a course with the
// same normalized code is already stored.
func (s *Store) Create(ctx context.Context, code, name string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM courses WHERE `+normalizedCode+` = $1)`,
		core.NormalizeCode(code),
	).Scan(&exists)
	if err != nil {
		return Course{}, fmt.Errorf("check course: %w", err)
	}
	if exists {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseExists, core.NormalizeCode(code))
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO courses (id, code, name) VALUES ($1, $2, $3)
		 RETURNING `+courseColumns,
		pgtype.UUID{Bytes: uuid.New(), Valid: true}, canonicalCode(code), strings.TrimSpace(name),
	)

	c, err := scanCourse(row)
	if isUniqueViolation(err) {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseExists, core.NormalizeCode(code))
	}
	if err != nil {
		return Course{}, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

// Rename sets the name of the course matching code and, when newCode is
// non-empty, its code. A newCode already used by another course yields
// ErrCodeConflict.
func (s *Store) Rename(ctx context.Context, code, name, newCode string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Course{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := getCourse(ctx, tx, code)
	if err != nil {
		return Course{}, err
	}

	targetCode := current.Code
	if newCode = strings.TrimSpace(newCode); newCode != "" {
		targetCode = canonicalCode(newCode)
	}

	if core.NormalizeCode(targetCode) != core.NormalizeCode(current.Code) {
		var taken bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM courses WHERE `+normalizedCode+` = $1 AND id <> $2)`,
			core.NormalizeCode(targetCode), pgtype.UUID{Bytes: current.ID, Valid: true},
		).Scan(&taken)
		if err != nil {
			return Course{}, fmt.Errorf("check code: %w", err)
		}
		if taken {
			return Course{}, fmt.Errorf("%w: %s", ErrCodeConflict, targetCode)
		}
	}

	row := tx.QueryRow(ctx,
		`UPDATE courses SET code = $2, name = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+courseColumns,
		pgtype.UUID{Bytes: current.ID, Valid: true}, targetCode, strings.TrimSpace(name),
	)

	updated, err := scanCourse(row)
	if isUniqueViolation(err) {
		return Course{}, fmt.Errorf("%w: %s", ErrCodeConflict, targetCode)
	}
	if err != nil {
		return Course{}, fmt.Errorf("rename course: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Course{}, fmt.Errorf("commit rename: %w", err)
	}
	return updated, nil
}

// Delete removes the course matching code and returns it.
func (s *Store) Delete(ctx context.Context, code string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	current, err := getCourse(ctx, s.db, code)
	if err != nil {
		return Course{}, err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, pgtype.UUID{Bytes: current.ID, Valid: true})
	if err != nil {
		return Course{}, fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, current.Code)
	}
	return current, nil
}

// UpsertResult counts the rows touched by UpsertAll.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// UpsertAll writes every record in one transaction. A record whose
// normalized code matches a stored course renames that course; any other
// record is inserted. Either all records are written or none are.
func (s *Store) UpsertAll(ctx context.Context, records []core.CourseRecord) (UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var res UpsertResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		tag, err := tx.Exec(ctx,
			`UPDATE courses SET name = $2, updated_at = now()
			 WHERE id = (
				SELECT id FROM courses WHERE `+normalizedCode+` = $1
				ORDER BY created_at LIMIT 1
			 )`,
			core.NormalizeCode(rec.Code), strings.TrimSpace(rec.Name),
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("upsert %s: %w", rec.Code, err)
		}
		if tag.RowsAffected() > 0 {
			res.Updated++
			continue
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO courses (id, code, name) VALUES ($1, $2, $3)
			 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`,
			pgtype.UUID{Bytes: uuid.New(), Valid: true}, canonicalCode(rec.Code), strings.TrimSpace(rec.Name),
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("upsert %s: %w", rec.Code, err)
		}
		res.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

// FindDuplicates groups stored courses whose normalized codes collide.
func (s *Store) FindDuplicates(ctx context.Context) ([]core.DuplicateGroup, error) {
	courses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return core.FindDuplicates(Snapshot(courses)), nil
}

// Snapshot converts stored courses to a core.Snapshot.
func Snapshot(courses []Course) core.Snapshot {
	snap := make(core.Snapshot, len(courses))
	for i, c := range courses {
		snap[i] = c.Record()
	}
	return snap
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

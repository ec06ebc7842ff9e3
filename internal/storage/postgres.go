package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/pressly/goose/v3"

	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return OpenPostgres(ctx, cfg.DSN(), cfg.MaxConns)
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// --- Employees ---

func (s *PostgresStore) Enroll(ctx context.Context, e *models.Employee) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.UpdatedAt = e.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO employees (id, name, email, phone, department, descriptor, photo_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Email, e.Phone, e.Department, pgvector.NewVector(e.Descriptor), e.PhotoKey, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "employees_email_key" {
			return ErrDuplicateEmail
		}
		return unavailable("enroll employee", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, photoKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE employees SET descriptor = $2, photo_key = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(descriptor), photoKey, s.now().UTC(),
	)
	if err != nil {
		return unavailable("replace descriptor", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var e models.Employee
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, department, descriptor, photo_key, created_at, updated_at
		 FROM employees WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Department, &vec, &e.PhotoKey, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get employee", err)
	}
	e.Descriptor = vec.Slice()
	return &e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, phone, department, photo_key, created_at, updated_at
		 FROM employees ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, unavailable("list employees", err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Department, &e.PhotoKey, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, unavailable("scan employee", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list employees", err)
	}
	return out, nil
}

func (s *PostgresStore) Gallery(ctx context.Context) ([]matching.Candidate, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, descriptor FROM employees`)
	if err != nil {
		return nil, unavailable("load gallery", err)
	}
	defer rows.Close()

	var out []matching.Candidate
	for rows.Next() {
		var c matching.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.EmployeeID, &c.Name, &vec); err != nil {
			return nil, unavailable("scan gallery", err)
		}
		c.Descriptor = vec.Slice()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load gallery", err)
	}
	return out, nil
}

// --- Attendance ---

const attendanceColumns = `id, employee_id, employee_name, direction, ts, distance, photo_key, source`

func scanEvent(row pgx.Row) (*models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	if err := row.Scan(&ev.ID, &ev.EmployeeID, &ev.EmployeeName, &ev.Direction, &ev.Timestamp,
		&ev.Distance, &ev.PhotoKey, &ev.Source); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *PostgresStore) LastAttendance(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_events
		 WHERE employee_id = $1 ORDER BY seq DESC LIMIT 1`, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("last attendance", err)
	}
	return ev, nil
}

// AppendAttendance locks the employee row so that concurrent appends for the
// same employee are serialised across every process sharing the database.
func (s *PostgresStore) AppendAttendance(ctx context.Context, ev *models.AttendanceEvent, expectedPrev *uuid.UUID) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin attendance", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 FOR UPDATE`, ev.EmployeeID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("lock employee", err)
	}

	var last *uuid.UUID
	var prev uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM attendance_events WHERE employee_id = $1 ORDER BY seq DESC LIMIT 1`,
		ev.EmployeeID).Scan(&prev)
	switch {
	case err == nil:
		last = &prev
	case !errors.Is(err, pgx.ErrNoRows):
		return unavailable("read latest attendance", err)
	}
	if !sameID(last, expectedPrev) {
		return ErrConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO attendance_events (`+attendanceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.EmployeeID, ev.EmployeeName, ev.Direction, ev.Timestamp, ev.Distance, ev.PhotoKey, ev.Source)
	if err != nil {
		return unavailable("insert attendance", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit attendance", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_events WHERE employee_id = $1 ORDER BY seq DESC`
	args := []any{employeeID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list attendance", err)
	}
	defer rows.Close()

	out := []models.AttendanceEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable("scan attendance", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list attendance", err)
	}
	return out, nil
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/predict"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// writeTimeout bounds how long recording a prediction may take
const writeTimeout = 2 * time.Second

// Record is one served prediction
type Record struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Input     features.Input `json:"input"`
	Price     float64        `json:"price"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Summary aggregates the recorded predictions
type Summary struct {
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	MeanPrice float64 `json:"mean_price"`
}

// Store persists served predictions in SQLite or Postgres
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the history database and creates its table
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var db *sql.DB
	switch driver {
	case DriverSQLite:
		var err error
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		// a single writer avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}
		db = stdlib.OpenDB(*cfg)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, s.ddl()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return s, nil
}

func (s *Store) ddl() string {
	floatType, timeType := "REAL", "TIMESTAMP"
	if s.driver == DriverPostgres {
		floatType, timeType = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS predictions (
	id          TEXT PRIMARY KEY,
	created_at  %[2]s NOT NULL,
	carat       %[1]s NOT NULL,
	depth       %[1]s NOT NULL,
	table_pct   %[1]s NOT NULL,
	x           %[1]s NOT NULL,
	y           %[1]s NOT NULL,
	z           %[1]s NOT NULL,
	cut         TEXT NOT NULL,
	color       TEXT NOT NULL,
	clarity     TEXT NOT NULL,
	price       %[1]s,
	error       TEXT NOT NULL DEFAULT '',
	duration_ns BIGINT NOT NULL
)`, floatType, timeType)
}

const insertRecord = `INSERT INTO predictions
	(id, created_at, carat, depth, table_pct, x, y, z, cut, color, clarity, price, error, duration_ns)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// bind rewrites ? placeholders to $n for Postgres
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Add stores a record, assigning an ID and timestamp when missing
func (s *Store) Add(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var price sql.NullFloat64
	if r.Error == "" {
		price = sql.NullFloat64{Float64: r.Price, Valid: true}
	}

	in := r.Input
	_, err := s.db.ExecContext(ctx, s.bind(insertRecord),
		r.ID, r.CreatedAt, in.Carat, in.Depth, in.Table, in.X, in.Y, in.Z,
		in.Cut, in.Color, in.Clarity, price, r.Error, int64(r.Duration))
	if err != nil {
		return fmt.Errorf("failed to record prediction %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT
	id, created_at, carat, depth, table_pct, x, y, z, cut, color, clarity, price, error, duration_ns
	FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r        Record
			price    sql.NullFloat64
			duration int64
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Input.Carat, &r.Input.Depth, &r.Input.Table,
			&r.Input.X, &r.Input.Y, &r.Input.Z, &r.Input.Cut, &r.Input.Color, &r.Input.Clarity,
			&price, &r.Error, &duration); err != nil {
			return nil, fmt.Errorf("failed to read history row: %w", err)
		}
		r.Price = price.Float64
		r.Duration = time.Duration(duration)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary aggregates every stored record
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var (
		sum  Summary
		mean sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), 0),
	AVG(price)
	FROM predictions`).Scan(&sum.Total, &sum.Failed, &mean)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize history: %w", err)
	}
	sum.MeanPrice = mean.Float64
	return sum, nil
}

// Observe records a prediction call that got past input normalization
func (s *Store) Observe(o predict.Observation) {
	if o.Input == nil {
		return
	}

	r := Record{
		ID:       o.RequestID,
		Input:    *o.Input,
		Duration: o.Duration,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	} else if o.Result != nil {
		r.Price = o.Result.Price
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.Add(ctx, r); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

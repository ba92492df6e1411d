package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

// DefaultTable is the table the IMDb loader writes to
const DefaultTable = "title_basics"

var validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ErrInvalidTable is returned for table names that are not plain identifiers
var ErrInvalidTable = errors.New("mysql: invalid table name")

// Config holds the connection settings for a title_basics node.
// Credentials come from configuration, never from code.
type Config struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Params   map[string]string `yaml:"params"`
}

// DSN renders the go-sql-driver connection string
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// Storage implements storage.Store on a MySQL table.
// Inserts run inside one transaction that Commit finalizes.
type Storage struct {
	db    *sql.DB
	table string
	log   *zap.Logger

	mu   sync.Mutex
	tx   *sql.Tx
	stmt *sql.Stmt
}

// Open connects to MySQL and verifies the connection
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Storage, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	s, err := New(db, cfg.Table, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. An empty table means DefaultTable.
func New(db *sql.DB, table string, log *zap.Logger) (*Storage, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validIdent.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Storage{db: db, table: table, log: log}, nil
}

// EnsureSchema creates the title table if it does not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Insert adds a row to the open load transaction, starting one if needed
func (s *Storage) Insert(ctx context.Context, row title.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return storage.ErrClosed
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin load transaction: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, s.insertSQL())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		s.tx, s.stmt = tx, stmt
	}

	_, err := s.stmt.ExecContext(ctx,
		row.TConst,
		row.TitleType,
		row.PrimaryTitle,
		row.StartYear,
		row.RuntimeMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", row.TConst, err)
	}
	return nil
}

// Commit commits the load transaction. With nothing inserted it is a no-op.
func (s *Storage) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return storage.ErrClosed
	}
	if s.tx == nil {
		return nil
	}

	tx, stmt := s.tx, s.stmt
	s.tx, s.stmt = nil, nil

	if err := stmt.Close(); err != nil {
		s.log.Warn("failed to close insert statement", zap.Error(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	return nil
}

// Rollback aborts the open load transaction, if any
func (s *Storage) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rollback()
}

func (s *Storage) rollback() error {
	if s.tx == nil {
		return nil
	}
	s.stmt.Close()
	err := s.tx.Rollback()
	s.tx, s.stmt = nil, nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back load: %w", err)
	}
	return nil
}

// Close rolls back an uncommitted load and closes the pool
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.rollback(); err != nil {
		s.log.Warn("closing with failed rollback", zap.Error(err))
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Search retrieves committed titles matching the request
func (s *Storage) Search(ctx context.Context, req storage.QueryRequest) ([]title.Row, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}

	query, args := s.searchSQL(req)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []title.Row
	for rows.Next() {
		var (
			r                  title.Row
			startYear, runtime sql.NullInt64
		)
		if err := rows.Scan(&r.TConst, &r.TitleType, &r.PrimaryTitle, &startYear, &runtime); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		r.StartYear = title.NullInt{Int: startYear.Int64, Valid: startYear.Valid}
		r.RuntimeMinutes = title.NullInt{Int: runtime.Int64, Valid: runtime.Valid}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of rows in the title table
func (s *Storage) Count(ctx context.Context) (uint64, error) {
	db, err := s.pool()
	if err != nil {
		return 0, err
	}

	var n uint64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quoted()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Stats returns row and year coverage for the title table
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}

	var (
		total, withYear uint64
		minYear, maxYear sql.NullInt64
	)
	query := "SELECT COUNT(*), COUNT(startYear), MIN(startYear), MAX(startYear) FROM " + s.quoted()
	if err := db.QueryRowContext(ctx, query).Scan(&total, &withYear, &minYear, &maxYear); err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}

	stats := &storage.Stats{TotalTitles: total, WithStartYear: withYear}
	if minYear.Valid {
		stats.MinStartYear = &minYear.Int64
	}
	if maxYear.Valid {
		stats.MaxStartYear = &maxYear.Int64
	}
	return stats, nil
}

func (s *Storage) pool() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, storage.ErrClosed
	}
	return s.db, nil
}

func (s *Storage) quoted() string {
	return "`" + s.table + "`"
}

func (s *Storage) createTableSQL() string {
	return "CREATE TABLE IF NOT EXISTS " + s.quoted() + ` (
	tconst VARCHAR(16) NOT NULL,
	titleType VARCHAR(32) NOT NULL,
	primaryTitle VARCHAR(512) NOT NULL,
	startYear SMALLINT NULL,
	runtimeMinutes INT NULL,
	PRIMARY KEY (tconst),
	KEY idx_start_year (startYear)
)`
}

func (s *Storage) insertSQL() string {
	return "INSERT INTO " + s.quoted() +
		" (tconst, titleType, primaryTitle, startYear, runtimeMinutes) VALUES (?, ?, ?, ?, ?)"
}

func (s *Storage) searchSQL(req storage.QueryRequest) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}

	b.WriteString("SELECT tconst, titleType, primaryTitle, startYear, runtimeMinutes FROM ")
	b.WriteString(s.quoted())
	if req.Query != "" {
		b.WriteString(" WHERE tconst LIKE ? OR primaryTitle LIKE ? OR titleType LIKE ?" +
			" OR CAST(startYear AS CHAR) LIKE ? OR CAST(runtimeMinutes AS CHAR) LIKE ?")
		wild := "%" + escapeLike(req.Query) + "%"
		args = append(args, wild, wild, wild, wild, wild)
	}
	b.WriteString(" ORDER BY startYear IS NULL, startYear DESC, tconst LIMIT ?")
	args = append(args, req.EffectiveLimit())
	return b.String(), args
}

// escapeLike escapes LIKE wildcards so the query matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

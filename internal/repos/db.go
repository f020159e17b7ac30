package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
	pingMaxWait     = 30 * time.Second
)

// Drivers lists the database/sql driver names OpenDB accepts.
var Drivers = []string{"sqlite", "postgres", "pgx", "mysql"}

// OpenDB connects to the catalog database, waits for it to answer and
// ensures the schema exists.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	if !knownDriver(driver) {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want one of %s)", driver, strings.Join(Drivers, ", "))
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// One connection: writers serialize instead of failing with SQLITE_BUSY,
		// and ":memory:" databases are not split across connections.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
	}

	if err := waitForDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func knownDriver(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

// waitForDB pings with exponential backoff so the service can start before
// its database container is ready.
func waitForDB(db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingMaxWait)
	defer cancel()

	attempt := 0
	ping := func() (struct{}, error) {
		attempt++
		err := db.PingContext(ctx)
		if err != nil {
			log.Printf("[db] ping attempt %d failed: %v", attempt, err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(pingMaxWait),
	)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func ensureSchema(db *sqlx.DB) error {
	// Portable DDL: the same statements run on sqlite, postgres and mysql.
	// MySQL has no CREATE INDEX IF NOT EXISTS, so its index lives in the table.
	sweetIndex := ""
	if db.DriverName() == "mysql" {
		sweetIndex = ",\n  INDEX idx_sweets_created_at (created_at)"
	}
	stmts := []string{`
CREATE TABLE IF NOT EXISTS sweets(
  id VARCHAR(36) PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  name_key VARCHAR(255) NOT NULL,
  category VARCHAR(255) NOT NULL DEFAULT '',
  category_key VARCHAR(255) NOT NULL DEFAULT '',
  price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
  quantity INTEGER NOT NULL CHECK (quantity >= 0),
  created_at BIGINT NOT NULL` + sweetIndex + `
)`, `
CREATE TABLE IF NOT EXISTS users(
  id VARCHAR(36) PRIMARY KEY,
  email VARCHAR(254) NOT NULL UNIQUE,
  name VARCHAR(255) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  role VARCHAR(16) NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at BIGINT NOT NULL
)`}
	if db.DriverName() != "mysql" {
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_sweets_created_at ON sweets(created_at)`)
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin ensures an ADMIN account exists for email (idempotent; safe to
// run every start). An existing account with that email is left untouched.
func SeedAdmin(ctx context.Context, db *sqlx.DB, name, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return errors.New("admin email and password are required")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	log.Printf("[seed] creating admin account %s", email)
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO users(id,email,name,password_hash,role,created_at)
		VALUES(?,?,?,?,?,?)`),
		uuid.NewString(), email, name, string(hash), "ADMIN", time.Now().UTC().UnixNano()); err != nil {
		return err
	}
	return tx.Commit()
}

// isDuplicateKey reports unique constraint violations across the supported
// drivers (sqlite "UNIQUE constraint failed", postgres 23505, mysql 1062).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}

// notFound normalizes driver "no rows" results.
func notFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }

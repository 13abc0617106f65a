package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/npezzotti/tactics-board/internal/types"
)

const uniqueViolation = "23505"

type PgTacticsRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewPgTacticsRepository(dsn string) (*PgTacticsRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PgTacticsRepository{
		conn: db,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (db *PgTacticsRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgTacticsRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// translateError maps driver errors onto the shared sentinel errors.
func translateError(err error, what string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, types.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s %w", what, types.ErrAlreadyExists)
	}

	return err
}

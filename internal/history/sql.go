package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var schemas = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS shoutbox_messages (
			id         TEXT PRIMARY KEY,
			author     TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			edited_at  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS shoutbox_messages_created_at_idx
			ON shoutbox_messages (created_at DESC)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS shoutbox_messages (
			id         TEXT PRIMARY KEY,
			author     TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			edited_at  DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS shoutbox_messages_created_at_idx
			ON shoutbox_messages (created_at DESC)`,
	},
}

// SQLStore persists history in PostgreSQL or SQLite through database/sql.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
}

// OpenSQL opens dsn with the driver matching dialect and applies the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// SQLite serializes writers; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{DB: db, Dialect: dialect}, nil
}

// Migrate creates the shoutbox_messages table and its index if missing.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", dialect, err)
		}
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, msg domain.ChatMessage) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO shoutbox_messages (id, author, body, created_at, edited_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`,
		msg.ID,
		msg.Author,
		msg.Body,
		msg.CreatedAt.UTC(),
		nullTime(msg),
	)
	return err
}

func (s *SQLStore) Update(ctx context.Context, msg domain.ChatMessage) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE shoutbox_messages
		SET body = $2, edited_at = $3
		WHERE id = $1
	`, msg.ID, msg.Body, nullTime(msg))
	return err
}

func (s *SQLStore) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, author, body, created_at, edited_at
		FROM shoutbox_messages
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var editedAt sql.NullTime
		if err := rows.Scan(
			&msg.ID,
			&msg.Author,
			&msg.Body,
			&msg.CreatedAt,
			&editedAt,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		if editedAt.Valid {
			t := editedAt.Time.UTC()
			msg.EditedAt = &t
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func nullTime(msg domain.ChatMessage) sql.NullTime {
	if msg.EditedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: msg.EditedAt.UTC(), Valid: true}
}

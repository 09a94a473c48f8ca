package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/theblitlabs/parity-ml/internal/transfer"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		session_id UUID PRIMARY KEY,
		filename   TEXT NOT NULL,
		purpose    TEXT NOT NULL,
		size       BIGINT NOT NULL,
		mac        TEXT NOT NULL,
		location   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		session_id TEXT PRIMARY KEY,
		filename   TEXT NOT NULL,
		purpose    TEXT NOT NULL,
		size       INTEGER NOT NULL,
		mac        TEXT NOT NULL,
		location   TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)
`

const selectArtifacts = `SELECT session_id, filename, purpose, size, mac, location, created_at FROM artifacts`

// SQLCatalog stores artifacts in PostgreSQL or SQLite. The dialect follows
// the driver name the handle was opened with.
type SQLCatalog struct {
	db *sqlx.DB
}

func NewSQLCatalog(db *sqlx.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

// Migrate creates the artifacts table when it does not exist yet.
func (c *SQLCatalog) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if c.db.DriverName() == "sqlite" {
		schema = sqliteSchema
	}
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create artifacts table: %w", err)
	}
	return nil
}

type dbArtifact struct {
	SessionID string    `db:"session_id"`
	Filename  string    `db:"filename"`
	Purpose   string    `db:"purpose"`
	Size      int64     `db:"size"`
	MAC       string    `db:"mac"`
	Location  string    `db:"location"`
	CreatedAt time.Time `db:"created_at"`
}

func (a dbArtifact) toArtifact() (*Artifact, error) {
	id, err := uuid.Parse(a.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", a.SessionID, err)
	}
	purpose, err := transfer.ParsePurpose(a.Purpose)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		SessionID: id,
		Filename:  a.Filename,
		Purpose:   purpose,
		Size:      a.Size,
		MAC:       a.MAC,
		Location:  a.Location,
		CreatedAt: a.CreatedAt,
	}, nil
}

func (c *SQLCatalog) Record(ctx context.Context, artifact *Artifact) error {
	row := dbArtifact{
		SessionID: artifact.SessionID.String(),
		Filename:  artifact.Filename,
		Purpose:   artifact.Purpose.String(),
		Size:      artifact.Size,
		MAC:       artifact.MAC,
		Location:  artifact.Location,
		CreatedAt: artifact.CreatedAt.UTC(),
	}

	query := `
		INSERT INTO artifacts (
			session_id, filename, purpose, size, mac, location, created_at
		) VALUES (
			:session_id, :filename, :purpose, :size, :mac, :location, :created_at
		)
	`

	if _, err := c.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

func (c *SQLCatalog) List(ctx context.Context) ([]Artifact, error) {
	var rows []dbArtifact
	query := selectArtifacts + ` ORDER BY created_at DESC`

	if err := c.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	artifacts := make([]Artifact, 0, len(rows))
	for _, row := range rows {
		a, err := row.toArtifact()
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, nil
}

func (c *SQLCatalog) Latest(ctx context.Context, purpose transfer.Purpose) (*Artifact, error) {
	var row dbArtifact
	query := c.db.Rebind(selectArtifacts + ` WHERE purpose = ? ORDER BY created_at DESC LIMIT 1`)

	if err := c.db.GetContext(ctx, &row, query, purpose.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest artifact: %w", err)
	}
	return row.toArtifact()
}

// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/pipeconf/configure"

	_ "github.com/mattn/go-sqlite3"
)

const createPipelineConfigs = `
CREATE TABLE IF NOT EXISTS pipeline_configs (
	namespace TEXT NOT NULL,
	name TEXT NOT NULL,
	artifact TEXT NOT NULL,
	config TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (namespace, name)
);
`

// SQLite is a [Repository] backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens, and creates if needed, the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, createPipelineConfigs)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &SQLite{db: db}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Healthy reports whether the database is reachable.
func (s *SQLite) Healthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// Load implements the [Repository] interface.
func (s *SQLite) Load(ctx context.Context, ref PipelineRef) (Pipeline, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT artifact, config FROM pipeline_configs WHERE namespace = ? AND name = ?`,
		ref.Namespace,
		ref.Name,
	)

	var artifact, config string
	err := row.Scan(&artifact, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return Pipeline{}, fmt.Errorf("%s: %w", ref, ErrPipelineNotFound)
	}
	if err != nil {
		return Pipeline{}, err
	}

	var p Pipeline
	err = json.Unmarshal([]byte(artifact), &p.Artifact)
	if err != nil {
		return Pipeline{}, InvalidConfigError{Pipeline: ref, Cause: err}
	}
	err = json.Unmarshal([]byte(config), &p.Config)
	if err != nil {
		return Pipeline{}, InvalidConfigError{Pipeline: ref, Cause: err}
	}
	return p, nil
}

// Save implements the [Repository] interface. Saving an unknown
// pipeline creates it.
func (s *SQLite) Save(ctx context.Context, ref PipelineRef, p Pipeline) error {
	artifact, err := json.Marshal(p.Artifact)
	if err != nil {
		return err
	}
	config, err := json.Marshal(p.Config)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_configs (namespace, name, artifact, config, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, name) DO UPDATE SET
			artifact = excluded.artifact,
			config = excluded.config,
			updated_at = excluded.updated_at`,
		ref.Namespace,
		ref.Name,
		string(artifact),
		string(config),
		time.Now().UTC(),
	)
	return err
}

// Seed stores a pipeline built from platform defaults unless one
// already exists under ref.
func (s *SQLite) Seed(ctx context.Context, ref PipelineRef, artifact configure.Artifact, defaults configure.Defaults) error {
	_, err := s.Load(ctx, ref)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrPipelineNotFound) {
		return err
	}
	p := Pipeline{Artifact: artifact}.WithRecord(configure.New(defaults, configure.WithArtifact(artifact)))
	return s.Save(ctx, ref, p)
}

// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/internal/otelconfig"
)

// BackendKind selects the pipeline repository.
type BackendKind string

const (
	BackendHTTP   BackendKind = "http"
	BackendSQLite BackendKind = "sqlite"
)

// Config is the configuration of the pipeconf service.
type Config struct {
	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`

	OTel otelconfig.Config `config:"otel"`

	Http struct {
		Port uint `config:"port"`
	} `config:"http"`

	Platform PlatformConfig `config:"platform"`

	Defaults configure.Defaults `config:"defaults"`
}

// PlatformConfig describes the platform pipelines are deployed to.
type PlatformConfig struct {
	Deployment configure.Deployment `config:"deployment"`
	Backend    BackendConfig        `config:"backend"`
}

// BackendConfig configures the pipeline repository.
type BackendConfig struct {
	Kind BackendKind `config:"kind"`

	Http struct {
		BaseURL    string        `config:"baseURL"`
		Timeout    time.Duration `config:"timeout"`
		MaxRetries int           `config:"maxRetries"`
		TripAfter  uint32        `config:"tripAfter"`
	} `config:"http"`

	SQLite struct {
		Path string       `config:"path"`
		Seed []SeedConfig `config:"seed"`
	} `config:"sqlite"`
}

// SeedConfig is a pipeline created from defaults when the
// SQLite repository does not hold it yet.
type SeedConfig struct {
	Namespace string             `config:"namespace"`
	Name      string             `config:"name"`
	Artifact  configure.Artifact `config:"artifact"`
}

// Ref returns the pipeline the seed is stored under.
func (s SeedConfig) Ref() backend.PipelineRef {
	return backend.PipelineRef{Namespace: s.Namespace, Name: s.Name}
}

// UnknownBackendError is returned for an unsupported [BackendKind].
type UnknownBackendError struct {
	Kind BackendKind
}

// Error implements the [builtin.error] interface.
func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend kind: %q", e.Kind)
}

// InitializeOTel implements the [appbuilder.OTelInitializer] interface.
func (cfg Config) InitializeOTel(ctx context.Context) error {
	return cfg.OTel.InitializeOTel(ctx)
}

// Validate reports every problem with cfg.
func (cfg Config) Validate() error {
	var errs []error
	if err := cfg.Defaults.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch cfg.Platform.Deployment {
	case configure.Local, configure.Enterprise:
	default:
		errs = append(errs, fmt.Errorf("unknown deployment: %q", cfg.Platform.Deployment))
	}
	switch cfg.Platform.Backend.Kind {
	case BackendHTTP:
		if cfg.Platform.Backend.Http.BaseURL == "" {
			errs = append(errs, errors.New("platform.backend.http.baseURL must be set"))
		}
	case BackendSQLite:
		if cfg.Platform.Backend.SQLite.Path == "" {
			errs = append(errs, errors.New("platform.backend.sqlite.path must be set"))
		}
		for _, seed := range cfg.Platform.Backend.SQLite.Seed {
			if err := seed.Ref().Validate(); err != nil {
				errs = append(errs, err)
			}
		}
	default:
		errs = append(errs, UnknownBackendError{Kind: cfg.Platform.Backend.Kind})
	}
	return errors.Join(errs...)
}

// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/config"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/service"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func readServiceConfig(t *testing.T, srcs ...config.Source) service.Config {
	t.Helper()

	m, err := config.Read(srcs...)
	require.NoError(t, err)

	var cfg service.Config
	require.NoError(t, m.Unmarshal(&cfg))
	return cfg
}

func TestConfigSources(t *testing.T) {
	t.Run("built in config is valid", func(t *testing.T) {
		t.Setenv("PORT", "")

		cfg := readServiceConfig(t, configSources("")...)

		require.NoError(t, cfg.Validate())
		require.Equal(t, uint(8080), cfg.Http.Port)
		require.Equal(t, service.BackendSQLite, cfg.Platform.Backend.Kind)
		require.Equal(t, configure.DefaultValues(), cfg.Defaults)
	})

	t.Run("file and environment override in order", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "override.yaml")
		override := "http:\n  port: 9000\nplatform:\n  deployment: local\n  backend:\n    http:\n      maxRetries: 1\n"
		require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

		t.Setenv("PORT", "")
		t.Setenv("PIPECONF_HTTP_PORT", "9100")
		t.Setenv("PIPECONF_PLATFORM_BACKEND_HTTP_MAXRETRIES", "6")

		cfg := readServiceConfig(t, configSources(path)...)

		require.Equal(t, uint(9100), cfg.Http.Port)
		require.Equal(t, configure.Local, cfg.Platform.Deployment)
		require.Equal(t, 6, cfg.Platform.Backend.Http.MaxRetries)
	})

	t.Run("json config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "override.json")
		override := `{"http": {"port": 9200}, "platform": {"backend": {"kind": "http", "http": {"baseURL": "http://platform:11015"}}}}`
		require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

		t.Setenv("PORT", "")

		cfg := readServiceConfig(t, configSources(path)...)

		require.Equal(t, uint(9200), cfg.Http.Port)
		require.Equal(t, service.BackendHTTP, cfg.Platform.Backend.Kind)
		require.Equal(t, "http://platform:11015", cfg.Platform.Backend.Http.BaseURL)
		require.Equal(t, 3, cfg.Platform.Backend.Http.MaxRetries)
	})

	t.Run("template env funcs", func(t *testing.T) {
		t.Setenv("PORT", "7000")

		cfg := readServiceConfig(t, configSources("")...)

		require.Equal(t, uint(7000), cfg.Http.Port)
	})
}

func TestServeCmd_missingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.ExecuteContext(context.Background())

	var target pipeconf.ConfigReadError
	require.ErrorAs(t, err, &target)
}

func TestOpenApiCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"openapi"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	require.Equal(t, "3.0.3", doc["openapi"])
}

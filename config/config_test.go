// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/z5labs/pipeconf/config/key"

	"github.com/stretchr/testify/require"
)

type level string

func (l *level) UnmarshalText(b []byte) error {
	s := strings.ToUpper(string(b))
	switch s {
	case "DEBUG", "INFO":
		*l = level(s)
		return nil
	default:
		return errors.New("unknown level")
	}
}

type serviceConfig struct {
	Http struct {
		Port uint `config:"port"`
	} `config:"http"`

	Logging struct {
		Level level `config:"level"`
	} `config:"logging"`

	Timeout time.Duration `config:"timeout"`
}

func TestRead(t *testing.T) {
	testCases := []struct {
		name     string
		srcs     []Source
		expected serviceConfig
	}{
		{
			name: "no sources yields zero config",
		},
		{
			name: "single yaml source",
			srcs: []Source{
				FromYaml(strings.NewReader("http:\n  port: 8080\nlogging:\n  level: debug\ntimeout: 5s\n")),
			},
			expected: func() (cfg serviceConfig) {
				cfg.Http.Port = 8080
				cfg.Logging.Level = "DEBUG"
				cfg.Timeout = 5 * time.Second
				return
			}(),
		},
		{
			name: "later sources override earlier ones",
			srcs: []Source{
				FromYaml(strings.NewReader("http:\n  port: 8080\nlogging:\n  level: debug\n")),
				FromJson(strings.NewReader(`{"http": {"port": 9090}}`)),
			},
			expected: func() (cfg serviceConfig) {
				cfg.Http.Port = 9090
				cfg.Logging.Level = "DEBUG"
				return
			}(),
		},
		{
			name: "map source with key chains",
			srcs: []Source{
				SourceFunc(func(s Store) error {
					return s.Set(key.Chain{key.Name("http"), key.Name("port")}, 7070)
				}),
			},
			expected: func() (cfg serviceConfig) {
				cfg.Http.Port = 7070
				return
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Read(tc.srcs...)
			require.NoError(t, err)

			var cfg serviceConfig
			err = m.Unmarshal(&cfg)
			require.NoError(t, err)
			require.Equal(t, tc.expected, cfg)
		})
	}
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will return a TypeCoercionError", func(t *testing.T) {
		t.Run("if a text unmarshaler rejects the value", func(t *testing.T) {
			m, err := Read(Map{"logging": map[string]any{"level": "loud"}})
			require.NoError(t, err)

			var cfg serviceConfig
			err = m.Unmarshal(&cfg)

			var terr TypeCoercionError
			require.ErrorAs(t, err, &terr)
		})

		t.Run("if a duration is malformed", func(t *testing.T) {
			m, err := Read(Map{"timeout": "soon"})
			require.NoError(t, err)

			var cfg serviceConfig
			err = m.Unmarshal(&cfg)

			var terr TypeCoercionError
			require.ErrorAs(t, err, &terr)
		})
	})
}

func TestMap_Set(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the key chain is empty", func(t *testing.T) {
			m := make(Map)
			err := m.Set(key.Chain{}, 1)

			var eerr EmptyKeyChainError
			require.ErrorAs(t, err, &eerr)
		})

		t.Run("if a key is nested under a non map value", func(t *testing.T) {
			m := Map{"http": 1}
			err := m.Set(key.Chain{key.Name("http"), key.Name("port")}, 80)

			var uerr UnexpectedKeyValueTypeError
			require.ErrorAs(t, err, &uerr)
			require.Equal(t, "http", uerr.Key)
		})
	})

	t.Run("will override keys which differ only in case", func(t *testing.T) {
		m := Map{"backend": map[string]any{"baseURL": "http://a"}}
		err := m.Set(key.Chain{key.Name("BACKEND"), key.Name("baseurl")}, "http://b")
		require.NoError(t, err)

		require.Equal(t, Map{"backend": map[string]any{"baseURL": "http://b"}}, m)
	})
}

func TestYaml_Apply(t *testing.T) {
	t.Run("will return an InvalidYamlError", func(t *testing.T) {
		t.Run("if the reader does not contain yaml", func(t *testing.T) {
			_, err := Read(FromYaml(strings.NewReader("http: [")))

			var yerr InvalidYamlError
			require.ErrorAs(t, err, &yerr)
		})
	})
}

func TestJson_Apply(t *testing.T) {
	t.Run("will return an InvalidJsonError", func(t *testing.T) {
		testCases := []struct {
			name string
			in   string
		}{
			{name: "if the reader does not contain json", in: "{"},
			{name: "if the reader is empty", in: ""},
			{name: "if the json is not an object", in: `[1, 2]`},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Read(FromJson(strings.NewReader(tc.in)))

				var jerr InvalidJsonError
				require.ErrorAs(t, err, &jerr)
			})
		}
	})

	t.Run("will return the read error as is", func(t *testing.T) {
		readErr := errors.New("read failed")

		_, err := Read(FromJson(iotest.ErrReader(readErr)))

		require.ErrorIs(t, err, readErr)
		var jerr InvalidJsonError
		require.False(t, errors.As(err, &jerr))
	})
}

func TestEnv_Apply(t *testing.T) {
	src := Env{
		prefix: "PIPECONF_",
		environ: func() []string {
			return []string{
				"PIPECONF_HTTP_PORT=8181",
				"PIPECONF_LOGGING_LEVEL=info",
				"HOME=/root",
				"PIPECONF_",
				"malformed",
			}
		},
	}

	m, err := Read(src)
	require.NoError(t, err)

	var cfg serviceConfig
	err = m.Unmarshal(&cfg)
	require.NoError(t, err)
	require.Equal(t, uint(8181), cfg.Http.Port)
	require.Equal(t, level("INFO"), cfg.Logging.Level)
}

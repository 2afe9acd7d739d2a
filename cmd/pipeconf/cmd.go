// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/config"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/service"
	"github.com/z5labs/pipeconf/session"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultConfig []byte

const envPrefix = "PIPECONF_"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeconf",
		Short:         "Edit pipeline configurations through sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newOpenApiCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configuration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return pipeconf.Run(cmd.Context(), service.Builder(), configSources(configFile)...)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "yaml or json file overriding the built in config")
	return cmd
}

func newOpenApiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI spec as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := session.NewRegistry(nil, configure.DefaultValues(), configure.Enterprise)
			spec, err := service.NewApp(service.NewSessions(registry, configure.Enterprise), nil).Spec()
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(spec)
		},
	}
}

// configSources layers the built in config, the optional config file
// and PIPECONF_ prefixed environment variables, in that order.
func configSources(configFile string) []config.Source {
	srcs := []config.Source{
		config.FromYaml(
			config.RenderTextTemplate(
				bytes.NewReader(defaultConfig),
				config.EnvTemplateFuncs(),
			),
		),
	}
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			abs = configFile
		}
		file := config.RenderTextTemplate(
			config.NewFileReader(os.DirFS(filepath.Dir(abs)), filepath.Base(abs)),
			config.EnvTemplateFuncs(),
		)
		if strings.EqualFold(filepath.Ext(abs), ".json") {
			srcs = append(srcs, config.FromJson(file))
		} else {
			srcs = append(srcs, config.FromYaml(file))
		}
	}
	return append(srcs, config.FromEnv(envPrefix))
}

// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeconf runs the pipeline configuration service.
//
// A pipeline's configuration is held in a [configure.Record] and only ever
// changes by applying a [configure.Action] to it. Records are loaded from
// and saved to a [backend.Repository] through a [session.Registry] and are
// exposed over HTTP by the service package.
//
// The package itself holds the small app model every binary is built on:
//
//	err := pipeconf.Run(ctx, builder, config.FromYaml(r), config.FromEnv("PIPECONF_"))
//
// Run reads the config sources, unmarshals them into the builder's config
// type, builds an [App] and runs it. Each step fails with its own error
// type so callers can tell a bad config file from a failed server.
package pipeconf

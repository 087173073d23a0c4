// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/docshuttle/lib/config"
	"github.com/bureau-foundation/docshuttle/lib/identity"
	"github.com/bureau-foundation/docshuttle/lib/metrics"
	"github.com/bureau-foundation/docshuttle/lib/service"
	"github.com/bureau-foundation/docshuttle/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("docshuttle", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml, .json, .jsonc); defaults to $"+config.EnvConfigPath)
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Printf("docshuttle %s\n", version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := service.NewLogger()

	var provider identity.Provider
	if !cfg.Auth.Disabled {
		owner, slug, err := cfg.RepositoryParts()
		if err != nil {
			return err
		}
		provider, err = identity.NewBitbucket(identity.BitbucketConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Owner:        owner,
			Slug:         slug,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("authentication disabled, every request is served")
	}

	promMetrics := metrics.NewProm("docshuttle")
	srv, err := newServer(serverConfig{
		Config:   cfg,
		Provider: provider,
		Metrics:  promMetrics,
		Scrape:   promMetrics.Handler(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Listen,
		Handler: srv.Handler(),
		Logger:  logger,
	})

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("docshuttle ready",
			"address", httpServer.Addr().String(),
			"save_directory", cfg.SaveDirectory,
			"version", version.Short(),
		)
	case err := <-httpDone:
		return err
	}

	return <-httpDone
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `docshuttle serves versioned documentation builds.

CI uploads a zip archive per commit with POST / (see docshuttle-push);
readers browse /, /head/, and /{commit}/ after logging in with Bitbucket.

Usage:
  docshuttle [flags]

Environment:
  %s  config file path when --config is not given
  SAVE_DIRECTORY, REPOSITORY, SECRET_KEY, OAUTH_CLIENT_ID,
  OAUTH_CLIENT_SECRET, DOCSHUTTLE_LISTEN, DOCSHUTTLE_UPLOAD_TOKEN
                     override the matching config fields

Flags:
`, config.EnvConfigPath)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

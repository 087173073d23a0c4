// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Docshuttle-push uploads a documentation build to a docshuttle server.
//
// It zips a directory and posts it for a commit, which the server
// extracts and makes the new head:
//
//	docshuttle-push --server https://docs.example.org --commit "$GIT_COMMIT" build/html
//
// The upload token, when the server requires one, comes from --token,
// $DOCSHUTTLE_UPLOAD_TOKEN, or an interactive prompt (--token-prompt).
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
	"github.com/bureau-foundation/docshuttle/lib/version"
)

const (
	envServer = "DOCSHUTTLE_URL"
	envToken  = "DOCSHUTTLE_UPLOAD_TOKEN"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		server      string
		commit      string
		token       string
		tokenPrompt bool
		useZstd     bool
		timeout     time.Duration
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("docshuttle-push", pflag.ContinueOnError)
	flagSet.StringVarP(&server, "server", "s", os.Getenv(envServer), "docshuttle base URL (default $"+envServer+")")
	flagSet.StringVarP(&commit, "commit", "c", "", "full commit hash the build belongs to (required)")
	flagSet.StringVar(&token, "token", "", "upload bearer token (default $"+envToken+")")
	flagSet.BoolVar(&tokenPrompt, "token-prompt", false, "prompt for the upload token on the terminal")
	flagSet.BoolVar(&useZstd, "zstd", false, "compress entries with zstd instead of deflate")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Minute, "upload timeout")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
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
		fmt.Printf("docshuttle-push %s\n", version.Info())
		return nil
	}

	positional := flagSet.Args()
	if len(positional) != 1 {
		return fmt.Errorf("expected exactly one directory argument, got %d", len(positional))
	}
	if server == "" {
		return fmt.Errorf("--server is required (or set %s)", envServer)
	}
	ref, err := gitref.Parse(commit)
	if err != nil {
		return fmt.Errorf("--commit: %w", err)
	}

	if token == "" {
		token = os.Getenv(envToken)
	}
	if tokenPrompt {
		token, err = promptToken()
		if err != nil {
			return err
		}
	}

	var archive bytes.Buffer
	stats, err := archiveDirectory(&archive, positional[0], useZstd)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", positional[0], err)
	}
	if stats.Files == 0 {
		return fmt.Errorf("%s contains no files", positional[0])
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	err = push(ctx, http.DefaultClient, pushRequest{
		Server:  server,
		Commit:  ref,
		Token:   token,
		Archive: archive.Bytes(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "uploaded %s: %d files, %d bytes (%d compressed)\n",
		ref.Short(), stats.Files, stats.Bytes, archive.Len())
	return nil
}

// promptToken reads the upload token from the terminal with echo
// disabled.
func promptToken() (string, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", errors.New("no terminal available for the token prompt (use --token or " + envToken + ")")
	}
	fmt.Fprint(os.Stderr, "Upload token: ")
	tokenBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(tokenBytes)), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `docshuttle-push uploads a documentation build to docshuttle.

Usage:
  docshuttle-push [flags] <directory>

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

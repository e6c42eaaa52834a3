// trdb inspects and edits texture replacement databases: the JSON documents
// that map a texture's content hash to the replacement file a renderer
// should load in its place.
//
// Usage:
//
//	trdb [--config FILE] [--db FILE] [--log-level LEVEL] <command> [args]
//
// Commands:
//
//	get <hash>                 print the replacement for a hash
//	add --hash H --path P      add or update a replacement
//	fix <old-hash> --hash H    move a replacement to a new hash
//	list                       list replacements (--prefix, --path, --load, --life)
//	audit                      check files and index consistency
//	hash <number>              format a numeric hash as a database key
//	snapshot                   save a snapshot of the database
//	snapshots                  list snapshots
//	restore <id>               replace the database with a snapshot
//	snapshot-delete <id>       delete a snapshot
//	watch                      log reloads as the database file changes
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	internal "github.com/ZanzyTHEbar/texture-replacements/trdb"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a specific exit status up to run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// env is what every command gets to work with.
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(e *env, args []string) error
}

var commands = map[string]command{
	"get":             {"print the replacement for a hash", runGet},
	"add":             {"add or update a replacement", runAdd},
	"fix":             {"move a replacement to a new hash", runFix},
	"list":            {"list replacements", runList},
	"audit":           {"check files and index consistency", runAudit},
	"hash":            {"format a numeric hash as a database key", runHash},
	"snapshot":        {"save a snapshot of the database", runSnapshot},
	"snapshots":       {"list snapshots", runSnapshots},
	"restore":         {"replace the database with a snapshot", runRestore},
	"snapshot-delete": {"delete a snapshot", runSnapshotDelete},
	"watch":           {"log reloads as the database file changes", runWatch},
}

func run(args []string, stdout, stderr io.Writer) int {
	var configPath, dbPath, logLevel string

	flagSet := pflag.NewFlagSet("trdb", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "config file (default: ./config.yaml or ~/.config/trdb/config.yaml)")
	flagSet.StringVar(&dbPath, "db", "", "replacement database file (overrides database.path)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n", rest[0])
		printUsage(stderr, flagSet)
		return 2
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := internal.NewLogger(stderr, cfg.Log.Level)
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slogLevel(logger.GetLevel())})))

	e := &env{cfg: cfg, log: logger, stdout: stdout, stderr: stderr}
	if err := cmd.run(e, rest[1:]); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(stderr, "%v\n", exit.err)
			}
			return exit.code
		}
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func slogLevel(level zerolog.Level) slog.Level {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel, zerolog.Disabled:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "usage: trdb [flags] <command> [args]\n\nCommands:\n")
	for _, name := range []string{"get", "add", "fix", "list", "audit", "hash", "snapshot", "snapshots", "restore", "snapshot-delete", "watch"} {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}

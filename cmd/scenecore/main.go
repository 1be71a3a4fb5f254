// Command scenecore inspects, replays, backs up and watches scene snapshots.
//
// Usage:
//
//	scenecore [-config scenecore.toml] <command> [flags] [args]
//
// Commands: inspect, replay, backup, templates, watch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"scenecore/internal/config"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

// errUsage marks argument errors; they exit with status 2.
var errUsage = errors.New("usage")

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"inspect":   runInspect,
	"replay":    runReplay,
	"backup":    runBackup,
	"templates": runTemplates,
	"watch":     runWatch,
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scenecore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "scenecore.toml", "path to the TOML configuration file")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "scenecore: %v\n", err)
		return 1
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "scenecore: logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, logger: logger.With(zap.String("command", rest[0])), stdout: stdout}
	if err := cmd(ctx, a, rest[1:]); err != nil {
		_, _ = fmt.Fprintf(stderr, "scenecore %s: %v\n", rest[0], err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintln(w, "usage: scenecore [-config path] <command> [flags] [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	_, _ = fmt.Fprintf(w, "commands: %v\n", names)
	fs.PrintDefaults()
}

// subFlags returns a flag set for a subcommand that reports parse errors as
// usage errors.
func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseSub(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// Command ada schedules personal automation workflows and manages them from
// the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"ada/internal/config"
	"ada/internal/logging"
)

const usage = `usage: ada [-config file] [-db path] <command> [args]

commands:
  serve                                  run the scheduler and the HTTP API
  workflows                              list registered workflows
  tasks list|create|update|delete|preview|run
  users list|create|delete
  locations list|create|delete
  events                                 show execution history
`

type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"serve":     runServe,
	"workflows": runWorkflows,
	"tasks":     runTasks,
	"users":     runUsers,
	"locations": runLocations,
	"events":    runEvents,
}

func main() { os.Exit(run()) }

func run() int {
	var (
		cfgPath = flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
		dbPath  = flag.String("db", "", "SQLite DB path (overrides db.path)")
		addr    = flag.String("addr", "", "HTTP bind address (overrides http.addr)")
		level   = flag.String("log-level", "", "log level (overrides log.level)")
	)
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", flag.Arg(0), usage)
		return 2
	}

	overrides := map[string]any{}
	for key, v := range map[string]string{"db.path": *dbPath, "http.addr": *addr, "log.level": *level} {
		if v != "" {
			overrides[key] = v
		}
	}
	cfg, err := config.Load(*cfgPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger, err := logging.Setup(cfg.Log, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		log.Error().Err(err).Msg("startup")
		return 1
	}
	defer a.Close()
	a.cfgPath, a.overrides = *cfgPath, overrides

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, a, flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}

// usageError marks a malformed command line.
type usageError string

func (e usageError) Error() string { return string(e) }

func usagef(format string, args ...any) error {
	return usageError(fmt.Sprintf(format, args...))
}

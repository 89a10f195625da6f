// Command readywatch runs a command, relaying its output, forwarding
// termination signals to it, and logging a periodic heartbeat, all driven by
// a single readiness dispatcher. It exits with the exit code of the command.
//
// Usage:
//
//	readywatch [-config path] [command [args...]]
//
// The command may be provided by the config file, or on the command line,
// which takes precedence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joeycumines/go-readiness/internal/config"
	"github.com/joeycumines/stumpy"
)

func main() {
	os.Exit(mainWithArgs(os.Args[1:]))
}

func mainWithArgs(args []string) int {
	fs := flag.NewFlagSet(`readywatch`, flag.ContinueOnError)
	configPath := fs.String(`config`, ``, `path to a YAML config file`)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "readywatch: %v\n", err)
		return 2
	}
	if fs.NArg() != 0 {
		cfg.Command = fs.Args()
	}

	level, _ := cfg.Logging.GetLevel()
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	code, err := run(context.Background(), cfg, logger, os.Stdout, os.Stderr)
	if err != nil {
		logger.Crit().
			Err(err).
			Log(`readywatch failed`)
		return 1
	}
	return code
}

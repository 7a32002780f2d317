package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scijava/opsgate/cmd/opsgate/commands"
)

// Version information, set with -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(globalLevel(os.Getenv("LOG_LEVEL"), os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("opsgate failed")
		stop()
		os.Exit(1)
	}
}

// globalLevel returns the zerolog global level: LOG_LEVEL when set, else
// info. A --verbose/-v flag lowers the default to debug so that the
// configured logger's debug output is not capped.
func globalLevel(env string, args []string) zerolog.Level {
	if level, err := zerolog.ParseLevel(env); err == nil && level != zerolog.NoLevel {
		return level
	}
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "-v" || arg == "--verbose" {
			return zerolog.DebugLevel
		}
	}
	return zerolog.InfoLevel
}

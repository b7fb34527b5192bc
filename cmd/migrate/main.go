package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/database"
	"github.com/stemsi/examsecure/internal/logger"
)

type command struct {
	usage string
	nargs int
	run   func(m *migrate.Migrate, args []string) (string, error)
}

var commands = map[string]command{
	"up": {"up", 0, func(m *migrate.Migrate, _ []string) (string, error) {
		return "schema is current", ignoreNoChange(m.Up())
	}},
	"down": {"down", 0, func(m *migrate.Migrate, _ []string) (string, error) {
		return "all migrations reverted", ignoreNoChange(m.Down())
	}},
	"steps": {"steps <n>", 1, func(m *migrate.Migrate, args []string) (string, error) {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return "", fmt.Errorf("steps wants a non-zero integer, got %q", args[0])
		}
		return fmt.Sprintf("applied %d step(s)", n), ignoreNoChange(m.Steps(n))
	}},
	"version": {"version", 0, func(m *migrate.Migrate, _ []string) (string, error) {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "no migration applied yet", nil
		}
		return fmt.Sprintf("version %d (dirty=%t)", v, dirty), err
	}},
	"force": {"force <version>", 1, func(m *migrate.Migrate, args []string) (string, error) {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("force wants an integer version, got %q", args[0])
		}
		return fmt.Sprintf("version forced to %d", v), m.Force(v)
	}},
}

func main() {
	dir := flag.String("path", "", "directory of migration files; embedded migrations when empty")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok || len(args)-1 != cmd.nargs {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("command", args[0]).Logger()
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := database.NewMigrator(cfg.DatabaseURL, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open migrations")
	}
	defer m.Close()

	msg, err := cmd.run(m, args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	fmt.Println(msg)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-path dir] <command>")
	for _, name := range []string{"up", "down", "steps", "version", "force"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	flag.PrintDefaults()
}

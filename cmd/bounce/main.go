// Command bounce checks, formats and replays bounce collision programs.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/urfave/cli.v1"

	"github.com/bouncegrid/bounce/pkg/audio"
	"github.com/bouncegrid/bounce/pkg/config"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/help"
	"github.com/bouncegrid/bounce/pkg/logging"
)

// Exit codes.
const (
	exitUsage    = 1
	exitDiag     = 2
	exitRuntime  = 4
	exitMismatch = 5
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (trace, debug, info, warn, error)",
	}
	audioFlag = cli.StringFlag{
		Name:  "audio",
		Usage: "audio backend for play_sample",
		Value: "log",
	}
	prettyFlag = cli.BoolFlag{
		Name:  "pretty",
		Usage: "human-readable diagnostics instead of JSON",
	}
	writeFlag = cli.BoolFlag{
		Name:  "write",
		Usage: "write the result back to the source file",
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "print actions as JSON",
	}
)

// session is the configuration shared by every command.
type session struct {
	cfg   config.Config
	log   zerolog.Logger
	audio *audio.Registry
}

func newSession(ctx *cli.Context) (*session, error) {
	cfg, err := config.Load(ctx.GlobalString(configFileFlag.Name))
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitUsage)
	}
	if lvl := ctx.GlobalString(logLevelFlag.Name); lvl != "" {
		cfg.Log.Level = lvl
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitUsage)
	}
	reg := audio.NewRegistry()
	audio.RegisterDefaults(reg)
	return &session{cfg: cfg, log: log, audio: reg}, nil
}

func (s *session) player(ctx *cli.Context) (audio.Player, error) {
	p, err := s.audio.New(ctx.GlobalString(audioFlag.Name), s.log)
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitUsage)
	}
	return p, nil
}

func (s *session) engineOptions() []evaluator.Option {
	return []evaluator.Option{
		evaluator.WithLogger(s.log),
		evaluator.WithMaxLoopIterations(s.cfg.Engine.MaxLoopIterations),
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "bounce"
	app.Usage = "collision scripting for the bounce grid"
	app.Version = help.Version
	app.Flags = []cli.Flag{configFileFlag, logLevelFlag, audioFlag}
	app.Commands = []cli.Command{
		checkCommand,
		fmtCommand,
		runCommand,
		replCommand,
		libraryCommand,
		helpCommand,
		dumpConfigCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

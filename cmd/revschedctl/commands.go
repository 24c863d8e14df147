package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	service "github.com/okian/revsched/internal/app"
	"github.com/okian/revsched/internal/config"
	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/extraction"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/pkg/logger"
)

// Command usage errors.
var (
	ErrRunCount = errors.New("score needs exactly two --run files")
	ErrNameArg  = errors.New("match needs exactly one item name")
	ErrNoMatch  = errors.New("no catalog item matches")
)

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "revschedctl",
		Usage:     "Normalize model-extracted revenue schedules into Garage records",
		Version:   fmt.Sprintf("%s (commit: %s)", version, commit),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			if err := logger.Init(logger.WithWriter(c.App.ErrWriter)); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return logger.SetLevelString(c.String("log-level"))
		},
		Commands: []*cli.Command{
			normalizeCommand(),
			matchCommand(),
			scoreCommand(),
			versionCommand(),
		},
	}
}

func runFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:     "run",
		Aliases:  []string{"r"},
		Usage:    "Extraction run file (JSON or raw model text, - for stdin); repeat for a second run",
		Required: true,
	}
}

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "Normalize one or two extraction runs",
		Flags: []cli.Flag{
			runFlag(),
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Print schedules, agreement and summary as well as Garage records",
			},
		},
		Action: runNormalize,
	}
}

func runNormalize(c *cli.Context) error {
	out, err := process(c, c.StringSlice("run"))
	if err != nil {
		return err
	}
	if c.Bool("full") {
		return printJSON(c.App.Writer, out)
	}
	return printJSON(c.App.Writer, out.Garage)
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Look an item name up in the integration catalog",
		ArgsUsage: "<name>",
		Action:    runMatch,
	}
}

func runMatch(c *cli.Context) error {
	if c.NArg() != 1 {
		return ErrNameArg
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	m, ok := service.NewMatcher(cfg).Match(c.Args().First())
	if !ok {
		return fmt.Errorf("%w %q", ErrNoMatch, c.Args().First())
	}
	return printJSON(c.App.Writer, m)
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:   "score",
		Usage:  "Score agreement between two extraction runs",
		Flags:  []cli.Flag{runFlag()},
		Action: runScore,
	}
}

type scoreOutput struct {
	Agreement []agreement.Result `json:"agreement"`
	Summary   *agreement.Summary `json:"agreement_summary"`
	Flagged   bool               `json:"needs_review"`
}

func runScore(c *cli.Context) error {
	paths := c.StringSlice("run")
	if len(paths) != 2 {
		return ErrRunCount
	}
	out, err := process(c, paths)
	if err != nil {
		return err
	}
	res := scoreOutput{Agreement: out.Agreement, Summary: out.Summary}
	if out.Summary != nil {
		res.Flagged = out.Summary.Flagged > 0 || out.Summary.Unmatched > 0 || out.Summary.Extra > 0
	}
	return printJSON(c.App.Writer, res)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the build and policy versions",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "revschedctl %s\npolicy %s\n", c.App.Version, cfg.Policy.Version)
			return err
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv(config.EnvConfigPath, path); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(c.Context)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// process reads the run files and runs the configured pipeline over them.
func process(c *cli.Context, paths []string) (pipeline.Output, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return pipeline.Output{}, err
	}
	runs := make([]extraction.Run, 0, len(paths))
	for _, path := range paths {
		run, err := readRun(c.App.Reader, path)
		if err != nil {
			return pipeline.Output{}, err
		}
		runs = append(runs, run)
	}
	out := service.NewPipeline(cfg).Run(runs)
	if out.ShouldRetry {
		logger.Get().Warn(c.Context, "extraction should be retried", logger.Any("issues", out.Issues))
	}
	return out, nil
}

func readRun(stdin io.Reader, path string) (extraction.Run, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return extraction.Run{}, fmt.Errorf("read %s: %w", path, err)
	}
	run, err := extraction.Parse(b)
	if err != nil {
		return extraction.Run{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return run, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

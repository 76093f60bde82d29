package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"mangrobe.dev/streamsource/config"
	"mangrobe.dev/streamsource/logging"
	"mangrobe.dev/streamsource/splits"
)

func main() {
	app := &cli.App{
		Name:  "streamsource",
		Usage: "Stream table commits as change records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "",
				Usage: "debug, info, warn or error. Overrides the config file.",
			},
		},
		Before: func(ctx *cli.Context) error {
			slog.SetDefault(slog.New(logging.NewTextHandler()))
			return setLogLevel(ctx.String("log-level"))
		},
		Commands: []*cli.Command{{
			Name:      "run",
			Usage:     "Read a table's commits and print them as JSON lines",
			Args:      true,
			ArgsUsage: "<config.json>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "metrics-addr",
					Value: "127.0.0.1:9090",
					Usage: "serve prometheus metrics on this address, empty to disable",
				},
				&cli.StringSliceFlag{
					Name:  "param",
					Usage: "NAME=VALUE for ${NAME} references in the config, falls back to the environment",
				},
			},
			Action: func(ctx *cli.Context) error {
				configPath := ctx.Args().First()
				if configPath == "" {
					return fmt.Errorf("config path is required")
				}
				params, err := parseParams(ctx.StringSlice("param"))
				if err != nil {
					return err
				}

				sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()

				cfg, err := config.Load(sigCtx, configPath, params)
				if err != nil {
					return err
				}
				if !ctx.IsSet("log-level") {
					if err := setLogLevel(cfg.LogLevel); err != nil {
						return err
					}
				}

				err = run(sigCtx, cfg, ctx.String("metrics-addr"), os.Stdout)
				if err != nil {
					slog.Error("terminated with error", "error", err)
				}
				return err
			},
		}, {
			Name:  "fake-server",
			Usage: "Serve an in-memory table service that keeps committing files",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "addr",
					Value: "127.0.0.1:50051",
					Usage: "listen address",
				},
				&cli.StringFlag{
					Name:  "table",
					Value: "demo",
					Usage: "name of the table to create",
				},
				&cli.IntFlag{
					Name:  "streams",
					Value: 4,
					Usage: "number of streams in the table",
				},
				&cli.DurationFlag{
					Name:  "commit-interval",
					Value: time.Second,
					Usage: "time between generated commits, 0 to disable",
				},
			},
			Action: func(ctx *cli.Context) error {
				sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()

				return serveFake(sigCtx, fakeServerParams{
					addr:           ctx.String("addr"),
					table:          ctx.String("table"),
					streams:        ctx.Int("streams"),
					commitInterval: ctx.Duration("commit-interval"),
				})
			},
		}, {
			Name:      "decode-split",
			Usage:     "Print the fields of an encoded split",
			Args:      true,
			ArgsUsage: "<table:stream[:commit]>",
			Action: func(ctx *cli.Context) error {
				s, err := splits.Decode([]byte(ctx.Args().First()))
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "table=%s stream=%d startingCommit=%q id=%s\n",
					s.Table, s.StreamID, s.StartingCommitID, s.ID())
				return nil
			},
		}},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func setLogLevel(name string) error {
	if name == "" {
		return nil
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	return nil
}

func parseParams(pairs []string) (*config.Params, error) {
	params := config.NewParams()
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("param must look like NAME=VALUE but was %q", pair)
		}
		params.Set(name, value)
	}
	return params, nil
}

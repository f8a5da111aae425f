// Command seed loads a JSON list of cheeses into the catalog database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/everycheese/everycheese/internal/cheese/service"
	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/internal/database"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const (
	flagFile         = "file"
	flagCreator      = "creator"
	flagSkipExisting = "skip-existing"
)

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "Load cheeses into the EveryCheese catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
				Usage:   "Set logging level",
			},
		},
		Before: func(ctx *cli.Context) error {
			logger.Init(ctx.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			loadCommand(),
			listCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Create cheeses from a JSON file (use '-' for stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagFile,
				Aliases:  []string{"f"},
				Usage:    "Path to a JSON array of {name, description, firmness, country_of_origin}",
				Required: true,
			},
			&cli.StringFlag{
				Name:    flagCreator,
				Usage:   "Subject recorded as the creator of every loaded cheese",
				Value:   "seed",
				EnvVars: []string{"SEED_CREATOR"},
			},
			&cli.BoolFlag{
				Name:  flagSkipExisting,
				Usage: "Skip entries whose slug already exists",
				Value: true,
			},
		},
		Action: func(cCtx *cli.Context) error {
			ctx := cCtx.Context
			svc, closeDB, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			var in io.Reader = os.Stdin
			if path := cCtx.String(flagFile); path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return errors.Wrap(err, "could not open input file")
				}
				defer f.Close()
				in = f
			}
			res, err := loadCheeses(ctx, svc, in, cCtx.String(flagCreator), cCtx.Bool(flagSkipExisting))
			if err != nil {
				return err
			}
			logger.Infof("seed done: created=%d skipped=%d invalid=%d", res.Created, res.Skipped, res.Invalid)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the slug and name of every cheese",
		Action: func(cCtx *cli.Context) error {
			svc, closeDB, err := openCatalog(cCtx.Context)
			if err != nil {
				return err
			}
			defer closeDB()
			list, err := svc.List(cCtx.Context)
			if err != nil {
				return errors.Wrap(err, "could not list cheeses")
			}
			for _, c := range list {
				fmt.Fprintf(cCtx.App.Writer, "%s\t%s\n", c.Slug, c.Name)
			}
			return nil
		},
	}
}

func openCatalog(ctx context.Context) (service.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not load config")
	}
	if cfg.MongoDB.URI == "" {
		return nil, nil, errors.New("MONGODB_URI is required")
	}
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 3, time.Second)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	closeDB := func() { _ = client.Disconnect(context.Background()) }
	svc, err := service.NewMongoService(ctx, client.Database(cfg.MongoDB.Database).Collection("cheeses"))
	if err != nil {
		closeDB()
		return nil, nil, errors.WithStack(err)
	}
	return svc, closeDB, nil
}

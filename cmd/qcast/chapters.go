package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/chapters"
	"github.com/qcast/qcast/pkg/config"
	"github.com/qcast/qcast/pkg/database"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/urfave/cli/v2"
)

type verifyReport struct {
	BookID     *int                 `json:"book_id,omitempty"`
	Violations []chapters.Violation `json:"violations"`
}

func chaptersCommand() *cli.Command {
	return &cli.Command{
		Name:  "chapters",
		Usage: "inspect and fix chapter trees",
		Subcommands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "report chapters whose level or path disagrees with their parent",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "book-id", Usage: "only check this book"},
					debugFlag(),
				},
				Action: func(c *cli.Context) error {
					var bookID *int
					if c.IsSet("book-id") {
						id := c.Int("book-id")
						bookID = &id
					}
					return withService(c, func(ctx context.Context, svc *chapters.Service) error {
						n, err := verify(ctx, c.App.Writer, svc, bookID)
						if err != nil {
							return err
						}
						if n > 0 {
							return cli.Exit("", 1)
						}
						return nil
					})
				},
			},
			{
				Name:  "repair",
				Usage: "recompute level and path for every chapter of a book",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "book-id", Usage: "book to repair", Required: true},
					debugFlag(),
				},
				Action: func(c *cli.Context) error {
					return withService(c, func(ctx context.Context, svc *chapters.Service) error {
						return repair(ctx, c.App.Writer, svc, c.Int("book-id"))
					})
				},
			},
		},
	}
}

func debugFlag() cli.Flag {
	return &cli.BoolFlag{Name: "debug", Usage: "log every SQL query"}
}

// withService opens the configured database and hands fn a chapter service
// bound to it.
func withService(c *cli.Context, fn func(ctx context.Context, svc *chapters.Service) error) error {
	cfg, err := config.New()
	if err != nil {
		return errors.WithStack(err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close()

	ctx := c.Context
	if c.Bool("debug") {
		ctx = database.WithLogging(ctx)
	}

	return fn(ctx, chapters.NewService(db, cfg.ChapterMaxDepth))
}

// verify writes a JSON report to w and returns how many violations it holds.
func verify(ctx context.Context, w io.Writer, svc *chapters.Service, bookID *int) (int, error) {
	violations, err := svc.VerifyTree(ctx, bookID)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	b, err := json.MarshalIndent(verifyReport{BookID: bookID, Violations: violations}, "", "  ")
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return 0, errors.WithStack(err)
	}

	if len(violations) > 0 {
		logger.FromContext(ctx).Warn("chapter tree violations found", logger.Data{"count": len(violations)})
	}
	return len(violations), nil
}

func repair(ctx context.Context, w io.Writer, svc *chapters.Service, bookID int) error {
	written, err := svc.RepairTree(ctx, bookID)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintf(w, "recomputed %d chapters of book %d\n", written, bookID)
	return errors.WithStack(err)
}

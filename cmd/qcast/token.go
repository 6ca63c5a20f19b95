package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/auth"
	"github.com/qcast/qcast/pkg/config"
	"github.com/urfave/cli/v2"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an API token for a book owner",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "user-id", Usage: "owner id to put in the token", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.New()
			if err != nil {
				return errors.WithStack(err)
			}
			return issueToken(c.App.Writer, auth.NewService(cfg.JWTSecret, cfg.TokenExpiry), c.Int("user-id"))
		},
	}
}

func issueToken(w io.Writer, authService *auth.Service, userID int) error {
	token, err := authService.GenerateToken(userID)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintln(w, token)
	return errors.WithStack(err)
}

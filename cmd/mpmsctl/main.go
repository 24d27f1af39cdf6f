// mpmsctl runs maintenance tasks against the MPMS database using the same
// environment as the server.
//
// Usage:
//
//	go run ./cmd/mpmsctl migrate
//	go run ./cmd/mpmsctl create-user --username admin01 --email a@b.cn --password secret1
//	go run ./cmd/mpmsctl reset-link --email a@b.cn
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/models"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := newRootCommand(os.Stdout).Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "mpmsctl",
		Usage: "MPMS maintenance commands",
		Commands: []*cli.Command{
			migrateCommand(out),
			createUserCommand(out),
			resetLinkCommand(out),
		},
	}
}

func migrateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := models.MigrateTable(ctx, db, config.NewLogger(cfg.LogLevel)); err != nil {
				return err
			}
			fmt.Fprintln(out, "migrations applied")
			return nil
		},
	}
}

func createUserCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Register an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "group", Value: models.DefaultGroup},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, db, err := open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			user, err := models.Register(ctx, db, &models.NewUser{
				Username:        c.String("username"),
				Email:           c.String("email"),
				Password:        c.String("password"),
				ConfirmPassword: c.String("password"),
				Group:           c.String("group"),
			})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(out, "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
}

// resetLinkCommand prints a reset link instead of mailing it, for accounts
// whose owner cannot receive mail.
func resetLinkCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "reset-link",
		Usage: "Print a password reset link",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			input := &models.RequestResetInput{Email: c.String("email")}
			_, token, err := models.IssueResetToken(ctx, db, cfg.SecretKey, input, cfg.ResetTokenLifetime, time.Now())
			if err != nil {
				return describe(err)
			}
			base := strings.TrimRight(cfg.BaseURL, "/")
			if base == "" {
				base = "http://localhost:" + cfg.Port
			}
			fmt.Fprintf(out, "%s/reset_password/%s\n", base, token)
			fmt.Fprintf(out, "valid for %s\n", cfg.ResetTokenLifetime)
			return nil
		},
	}
}

func open() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := config.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// describe flattens form errors into one line for the terminal.
func describe(err error) error {
	if verrs, ok := models.AsValidationErrors(err); ok {
		return errors.New(verrs.Error())
	}
	return err
}

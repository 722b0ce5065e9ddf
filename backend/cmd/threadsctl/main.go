// threadsctl is the operator tool: schema migration, profile seeding and dev tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/itchan-dev/threads/backend/internal/service"
	"github.com/itchan-dev/threads/backend/internal/setup"
	"github.com/itchan-dev/threads/backend/internal/utils"
	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/domain"
	"github.com/itchan-dev/threads/shared/jwt"
	"github.com/itchan-dev/threads/shared/logger"
	"github.com/itchan-dev/threads/shared/revalidate"
)

const commandTimeout = time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	app := &cli.App{
		Name:  "threadsctl",
		Usage: "manage the threads backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-folder",
				Value:   "backend/config",
				Usage:   "path to folder with public.yaml and private.yaml",
				EnvVars: []string{"THREADS_CONFIG_FOLDER"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.MustLoad(c.String("config-folder"))
			logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create tables, collections and indexes of the configured storage",
				Action: runMigrate,
			},
			{
				Name:  "upsert-user",
				Usage: "create or update a profile, as the onboarding form would",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "external user id", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "bio"},
					&cli.StringFlag{Name: "image", Usage: "avatar url"},
				},
				Action: runUpsertUser,
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uid", Usage: "user id to put in the token", Required: true},
				},
				Action: runToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

// openStore also brings the schema up to date
func openStore(c *cli.Context) (setup.Store, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	store, err := setup.OpenToolStorage(ctx, configFrom(c))
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return store, ctx, cancel, nil
}

func runMigrate(c *cli.Context) error {
	store, _, cancel, err := openStore(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer store.Cleanup()

	fmt.Fprintf(c.App.Writer, "%s storage is up to date\n", configFrom(c).Public.Storage)
	return nil
}

func runUpsertUser(c *cli.Context) error {
	store, ctx, cancel, err := openStore(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer store.Cleanup()

	users := service.NewUser(store, &utils.UserValidator{}, revalidate.Log{}, configFrom(c).Public)
	user, err := users.Upsert(ctx, domain.UserProfileData{
		Id:       c.String("id"),
		Username: c.String("username"),
		Name:     c.String("name"),
		Bio:      c.String("bio"),
		Image:    c.String("image"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "user %s saved as @%s\n", user.Id, user.Username)
	return nil
}

func runToken(c *cli.Context) error {
	cfg := configFrom(c)
	ttl := cfg.JwtTTL()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	token, err := jwt.New(cfg.JwtKey(), ttl).NewToken(c.String("uid"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

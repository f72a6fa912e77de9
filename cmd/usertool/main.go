package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/licensedesk/internal/users"
	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/migrate"
	"github.com/angelmondragon/licensedesk/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "usertool"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "", "command: reset|passwd|list")
	dir := flag.String("dir", "", "goose migrations directory for a postgres reset (default: embedded)")
	username := flag.String("username", "", "user to update (for passwd)")
	password := flag.String("password", "", "new password (passwd) or seed password override (reset)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "usertool",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := users.NewService(users.NewRepository(dbClient.DB()), security.NewHasher(cfg.Password))
	requireResource(ctx, logg, "users service", err)

	switch *cmd {
	case "reset":
		if cfg.App.IsProd() {
			fmt.Fprintln(os.Stderr, "refusing to reset the schema in prod")
			os.Exit(1)
		}
		seed := *password
		if seed == "" {
			seed = cfg.Seed.DefaultPassword
		}
		if err := migrate.ResetSchema(ctx, dbClient, *dir); err != nil {
			fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
			os.Exit(1)
		}
		created, err := svc.SeedRoleUsers(ctx, seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seeding users failed: %v\n", err)
			os.Exit(1)
		}
		for _, u := range created {
			fmt.Printf("created user %s (role %s)\n", u.Username, u.Role)
		}

	case "passwd":
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "passwd requires -username and -password")
			os.Exit(1)
		}
		if err := svc.ChangePassword(ctx, *username, *password); err != nil {
			fmt.Fprintf(os.Stderr, "password change failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("password updated for %s\n", users.NormalizeUsername(*username))

	case "list":
		all, err := svc.ListUsers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "listing users failed: %v\n", err)
			os.Exit(1)
		}
		for _, u := range all {
			fmt.Printf("%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Jxel117/GastanGO-sub000/config"
	"github.com/Jxel117/GastanGO-sub000/internal/app"
)

func main() {
	flags := pflag.NewFlagSet("gastango-api", pflag.ExitOnError)
	envFiles := flags.StringSlice("env-file", nil, "dotenv files to load before reading the environment (default .env)")
	migrateOnly := flags.Bool("migrate-only", false, "apply database migrations and exit")
	_ = flags.Parse(os.Args[1:])

	cfg := config.MustLoad(*envFiles...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Printf("app stopped: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hyperalpha/arena/internal/config"
	"github.com/hyperalpha/arena/internal/dbadmin"
	"github.com/hyperalpha/arena/internal/version"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: arena-db [-dir db_exports] [-config configs/arena.local.yaml] export|import")
	os.Exit(2)
}

func main() {
	configPath := flag.String("config", "configs/arena.local.yaml", "path to config file")
	dir := flag.String("dir", "db_exports", "export directory")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall operation timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}
	command := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Info("starting arena-db",
		"version", version.Version,
		"command", command,
		"dir", *dir,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	tool := dbadmin.NewTool(cfg.Database, cfg.Keys.EncryptionKeyFile, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch command {
	case "export":
		set, err := tool.Export(ctx, *dir)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		logger.Info("export complete",
			"main", set.MainDump,
			"snapshots", set.SnapshotsDump,
			"manifest", set.Manifest,
		)
	case "import":
		if err := tool.Import(ctx, *dir); err != nil {
			logger.Error("import failed", "error", err)
			os.Exit(1)
		}
		logger.Info("import complete")
	default:
		usage()
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/cache"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/db"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/version"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	profileCmd := flag.NewFlagSet("profile", flag.ExitOnError)
	profileID := profileCmd.Int64("id", 0, "participant id")

	flushCmd := flag.NewFlagSet("flush-cache", flag.ExitOnError)
	flushAll := flushCmd.Bool("all", false, "drop every cached profile")
	flushID := flushCmd.Int64("id", 0, "drop the cached profile of one participant")

	if len(os.Args) < 2 {
		printUsage()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "profile":
		if err := profileCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return handleProfile(ctx, *profileID)
	case "profile-count":
		return handleProfileCount(ctx)
	case "flush-cache":
		if err := flushCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return handleFlushCache(ctx, *flushAll, *flushID)
	case "version":
		fmt.Println(version.String())
		return nil
	default:
		printUsage()
		return nil
	}
}

func openRepository() (*profiles.Repository, func(), error) {
	cfg := config.Parse()

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return profiles.NewRepository(database.Pool), database.Close, nil
}

func handleProfile(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("must specify --id")
	}

	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := repo.Get(ctx, id)
	if apperr.IsNotFound(err) {
		fmt.Printf("No profile for participant %d\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func handleProfileCount(ctx context.Context) error {
	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count profiles: %w", err)
	}
	fmt.Printf("%d profiles\n", n)
	return nil
}

func handleFlushCache(ctx context.Context, all bool, id int64) error {
	if !all && id <= 0 {
		return fmt.Errorf("must specify either --all or --id")
	}

	cfg := config.Parse()
	if !cfg.Redis.Enabled {
		return fmt.Errorf("redis is not enabled in config")
	}

	cacheClient, err := cache.New(cfg.Redis, zap.NewNop())
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing cache client: %v\n", err)
		}
	}()

	if all {
		n, err := cacheClient.DeletePattern(ctx, profiles.CacheKeyPattern)
		if err != nil {
			return fmt.Errorf("flush profile cache: %w", err)
		}
		if n == 0 {
			fmt.Println("No cached profiles found")
			return nil
		}
		fmt.Printf("Dropped %d cached profiles\n", n)
		return nil
	}

	if err := cacheClient.Delete(ctx, profiles.CacheKey(id)); err != nil {
		return fmt.Errorf("drop cached profile: %w", err)
	}
	fmt.Printf("Dropped cached profile for participant %d\n", id)
	return nil
}

func printUsage() {
	fmt.Println("Tandem CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tandem-cli profile --id <participant>")
	fmt.Println("  tandem-cli profile-count")
	fmt.Println("  tandem-cli flush-cache --all")
	fmt.Println("  tandem-cli flush-cache --id <participant>")
	fmt.Println("  tandem-cli version")
}

// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"chirp/internal/config"
	"chirp/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|auto|status|down|indexes> [version]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	if cfg.StoreDriver == config.StoreDriverMongo {
		return runMongo(ctx, cfg, cmd)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		printStatus(os.Stdout, status)
		if len(status.ModifiedMigrations) > 0 {
			return fmt.Errorf("%d applied migrations were modified", len(status.ModifiedMigrations))
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: go run ./cmd/migrate/main.go down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	default:
		return usage()
	}

	return nil
}

// runMongo handles the document store, which has indexes but no versioned migrations.
func runMongo(ctx context.Context, cfg *config.Config, cmd string) error {
	if cmd != "indexes" && cmd != "up" {
		return fmt.Errorf("%q is not supported with STORE_DRIVER=mongo; use indexes", cmd)
	}

	client, db, err := database.ConnectMongo(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := database.EnsureMongoIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	log.Printf("mongo indexes ensured on %s", db.Name())
	return nil
}

func printStatus(w io.Writer, status *database.SchemaStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\n", status.Mode)
	fmt.Fprintf(tw, "environment\t%s\n", status.Environment)
	fmt.Fprintf(tw, "sql migrations\t%t\n", status.WillRunSQL)
	fmt.Fprintf(tw, "automigrate\t%t\n", status.WillRunAutoMigrate)
	fmt.Fprintf(tw, "applied\t%d\n", len(status.AppliedVersions))
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(tw, "pending\t%s\n", m.String())
	}
	for _, m := range status.ModifiedMigrations {
		fmt.Fprintf(tw, "MODIFIED\t%s\n", m.String())
	}
	_ = tw.Flush()
}

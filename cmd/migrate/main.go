// Command migrate applies the embedded goose migrations.
//
//	migrate up|down|status|reset
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/noah-isme/teacher-attendance-api/pkg/config"
	"github.com/noah-isme/teacher-attendance-api/pkg/database"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate up|down|status|reset")
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	command := pflag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.DB, command); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: done", command)
}

// Command sweeper sends the missed sign-in and sign-out notifications. It is
// meant to be invoked by cron, e.g. at 10:05 for sign-in and 18:05 for sign-out.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	"github.com/noah-isme/teacher-attendance-api/internal/repository"
	"github.com/noah-isme/teacher-attendance-api/internal/service"
	"github.com/noah-isme/teacher-attendance-api/pkg/config"
	"github.com/noah-isme/teacher-attendance-api/pkg/database"
	"github.com/noah-isme/teacher-attendance-api/pkg/logger"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

const (
	kindSignIn  = "sign-in"
	kindSignOut = "sign-out"
	kindAll     = "all"
)

func main() {
	kind := pflag.String("kind", kindAll, "sweep to run: sign-in, sign-out or all")
	owner := pflag.String("owner", "", "restrict the sweep to one administrator's teachers")
	pflag.Parse()

	if *kind != kindSignIn && *kind != kindSignOut && *kind != kindAll {
		fmt.Fprintf(os.Stderr, "unknown sweep kind %q\n", *kind)
		pflag.Usage()
		os.Exit(2)
	}
	if *owner != "" {
		if _, err := uuid.Parse(*owner); err != nil {
			fmt.Fprintf(os.Stderr, "owner must be a UUID: %v\n", err)
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg, "sweeper")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	// Sweeps deliver synchronously so every outcome is counted before exit.
	notifier := service.NewNotificationService(notify.FromConfig(cfg.SMTP, cfg.SMS, cfg.Notify.Timeout), cfg.Notify.Timeout, nil, logr)
	sweeps := service.NewSweepService(repository.NewAttendanceRepository(db), policy.FromConfig(cfg.Attendance), policy.SystemClock{}, notifier, nil, logr)

	var runs []func(context.Context, string) (*dto.SweepResult, error)
	if *kind == kindSignIn || *kind == kindAll {
		runs = append(runs, sweeps.MissedSignIn)
	}
	if *kind == kindSignOut || *kind == kindAll {
		runs = append(runs, sweeps.MissedSignOut)
	}

	failed := false
	for _, run := range runs {
		result, err := run(ctx, *owner)
		if err != nil {
			logr.Error("sweep failed", zap.Error(err))
			failed = true
			continue
		}
		fmt.Printf("%s %s: evaluated=%d notified=%d failed=%d skipped_no_contact=%d skipped=%t %s\n",
			result.Kind, result.Date, result.Evaluated, result.Notified, result.Failed, result.SkippedNoContact, result.Skipped, result.Reason)
	}
	if failed {
		os.Exit(1)
	}
}

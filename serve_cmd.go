package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/fsh-designations/config"
	"github.com/giygas/fsh-designations/converter"
	"github.com/giygas/fsh-designations/data"
	"github.com/giygas/fsh-designations/handlers"
	"github.com/giygas/fsh-designations/health"
	"github.com/giygas/fsh-designations/interfaces"
	"github.com/giygas/fsh-designations/logging"
	"github.com/giygas/fsh-designations/scheduler"
	"github.com/giygas/fsh-designations/server"
)

// scheduledJob builds the conversion configured by CONVERT_* variables
func scheduledJob(cfg *config.Config) (*converter.Job, error) {
	if cfg.ConvertMapping == "" {
		return nil, errors.New("CONVERT_MAPPING is required when CONVERT_SOURCE is set")
	}
	mapping, err := config.LoadMappingFile(cfg.ConvertMapping)
	if err != nil {
		return nil, err
	}

	opts := converter.Options{
		Input:           cfg.ConvertSource,
		Output:          cfg.ConvertOutput,
		Mapping:         mapping.RoleMapping(),
		ExtraPrefix:     cfg.ExtraLanguagePrefix,
		Sheet:           mapping.Sheet,
		Encoding:        cfg.InputEncoding,
		OutputExtension: cfg.OutputExtension,
	}
	if mapping.ExtraPrefix != "" {
		opts.ExtraPrefix = mapping.ExtraPrefix
	}
	if mapping.Encoding != "" {
		opts.Encoding = mapping.Encoding
	}
	return converter.NewJob(opts), nil
}

func runServe(ctx context.Context, cfg *config.Config, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "Log to the console in test environments")
	fs.BoolVar(&verbose, "v", false, "Log to the console in test environments (shorthand)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logging.InitLogger(cfg, verbose)
	defer closeLogger(stderr)

	store := data.NewRunStore()
	store.SetServerStartTime(time.Now())

	var sched interfaces.Scheduler
	if cfg.ConvertSource != "" {
		job, err := scheduledJob(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "config error: %v\n", err)
			return exitUsage
		}
		s := scheduler.NewScheduler(store, job, cfg.ConvertSchedule)
		if err := s.Start(); err != nil {
			logging.Error("Failed to start scheduler", "error", err)
			return exitCode(err)
		}
		defer s.Stop()
		sched = s
	}

	handler := handlers.NewHTTPHandler(store, health.NewHealthChecker(store, sched), handlers.ConvertDefaults{
		ExtraPrefix: cfg.ExtraLanguagePrefix,
		Encoding:    cfg.InputEncoding,
	})
	srv := server.NewServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("Server failed", "error", err)
			return exitFailed
		}
		return exitOK
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", "error", err)
		return exitFailed
	}
	return exitOK
}

// Package main is the entry point for the Kliiq API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/logging"
	"github.com/kliiq/kliiq/internal/middleware"
	"github.com/kliiq/kliiq/internal/router"
	"github.com/kliiq/kliiq/internal/service"
	"github.com/kliiq/kliiq/internal/services"
	"github.com/kliiq/kliiq/internal/upgrade"
	"github.com/kliiq/kliiq/internal/version"
)

const binaryName = "kliiq-server"

func main() {
	// Check for subcommands first
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "upgrade":
			force := len(os.Args) > 2 && (os.Args[2] == "-f" || os.Args[2] == "--force")
			if err := upgrade.NewChecker("").Run(context.Background(), os.Stdout, binaryName, force); err != nil {
				fmt.Fprintf(os.Stderr, "Upgrade failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		case "version":
			printVersion()
			os.Exit(0)
		case "service":
			if err := runService(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Service command failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	bootLog := logging.New(binaryName, "info", false, os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Warn("could not load config file, using defaults and environment", "path", *configPath, "error", err)
		cfg, err = config.Load("")
		if err != nil {
			bootLog.Error("invalid environment configuration", "error", err)
			os.Exit(1)
		}
	}

	logger := logging.New(binaryName, cfg.Log.Level, cfg.Log.JSON || cfg.IsProduction(), os.Stderr)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if *migrateOnly {
		logger.Info("migrations complete")
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, db, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, db *database.DB, logger hclog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	cat := catalog.Default()
	events := services.NewEventService()
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
	defer limiter.Stop()

	r := router.New(router.Deps{
		Config:        cfg,
		DB:            db,
		Catalog:       cat,
		Verifier:      services.NewIdentityService(cfg.Supabase),
		PackService:   services.NewPackService(db, cat, cfg.Limits, events),
		DeviceService: services.NewDeviceService(db, events),
		AuditService:  services.NewAuditService(db),
		EventService:  events,
		RateLimiter:   limiter,
		Checker:       upgrade.NewChecker(""),
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Kliiq API starting", "version", version.Version, "addr", srv.Addr, "env", cfg.Env, "catalog_size", cat.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printVersion() {
	fmt.Printf("Kliiq %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
}

func runService(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: kliiq-server service install|uninstall|status [-config path]")
	}
	if !service.Supported() {
		return service.ErrUnsupported
	}

	fs := flag.NewFlagSet("service", flag.ContinueOnError)
	unit := service.DefaultUnit()
	fs.StringVar(&unit.ConfigPath, "config", unit.ConfigPath, "config file the service starts with")
	fs.StringVar(&unit.User, "user", unit.User, "user the service runs as")
	fs.StringVar(&unit.WorkingDir, "dir", unit.WorkingDir, "working directory holding the database")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	m := service.NewManager()
	switch args[0] {
	case "install":
		if os.Geteuid() != 0 {
			return errors.New("root privileges required")
		}
		if err := m.Install(unit); err != nil {
			return err
		}
		fmt.Printf("Installed and started %s\n", service.Name)
	case "uninstall":
		if os.Geteuid() != 0 {
			return errors.New("root privileges required")
		}
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", service.Name)
	case "status":
		status, err := m.Status()
		if err != nil {
			return err
		}
		fmt.Printf("installed: %t\nenabled:   %t\nstate:     %s (%s)\n",
			status.Installed, status.Enabled, status.ActiveState, status.SubState)
	default:
		return fmt.Errorf("unknown service command %q", args[0])
	}
	return nil
}

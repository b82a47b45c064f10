// Command lms-scand is the scan daemon: it loads the config file, opens the
// catalog database, and runs the coordinator, the mount-table watcher, and
// the HTTP+JSON+SSE control surface until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lms-scan/lms-scan/internal/api"
	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/config"
	"github.com/lms-scan/lms-scan/internal/daemon"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/parser/catalog"
	"github.com/lms-scan/lms-scan/internal/scanner"
	"github.com/lms-scan/lms-scan/internal/watcher"
)

// If re-invoked with the hidden worker flag, this binary is the scan
// worker's own entry point rather than the daemon (spec.md §5, §9's
// two-process driver/worker split via self-reexec).
func init() {
	if len(os.Args) > 1 && os.Args[1] == scanner.WorkerFlag {
		dbPath := os.Args[2]
		parserNames := splitCSV(os.Args[3])
		charsetNames := splitCSV(os.Args[4])
		commitInterval, err := strconv.Atoi(os.Args[5])
		if err != nil {
			commitInterval = 100
		}
		if err := scanner.RunWorker(dbPath, parserNames, charsetNames, commitInterval); err != nil {
			fmt.Fprintf(os.Stderr, "lms-scand worker: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

var (
	cfgFile          string
	dryRunMigrations bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lms-scand",
		Short: "Media scan daemon",
		Long: `lms-scand walks configured directory roots, identifies and parses media
files, and keeps a catalog database up to date, exposing scan control and
progress over HTTP+JSON+SSE.`,
		RunE: runDaemon,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/lightmediascannerd/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&dryRunMigrations, "dry-run-migrations", false, "print pending migrations, each marked destructive or non-destructive, without applying them, then exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lms-scand: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	if dryRunMigrations {
		pending, err := database.PreviewMigrations(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("list pending migrations: %w", err)
		}
		if len(pending) == 0 {
			fmt.Println("no pending migrations")
			return nil
		}
		fmt.Println("pending migrations:")
		for _, m := range pending {
			kind := "non-destructive"
			if m.Destructive {
				kind = "destructive"
			}
			fmt.Printf("  v%d (%s)\n", m.Version, kind)
		}
		return nil
	}

	store, err := database.OpenPath(cfg.DBPath, false)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer store.Close()

	names, err := allParserNames(cfg)
	if err != nil {
		return fmt.Errorf("resolve parser names: %w", err)
	}

	driver := scanner.NewDriver(cfg.DBPath, names, cfg.Charsets, cfg.SlaveTimeout, cfg.CommitInterval)
	if err := driver.Start(); err != nil {
		log.Warn("lms-scand", "starting worker process failed, scanning single-process", logging.F("error", err.Error()))
		driver = nil
	} else {
		defer driver.Stop()
	}

	newScanner := func() *scanner.Scanner {
		plugins, err := catalog.ByNames(names)
		if err != nil {
			log.Error("lms-scand", "resolving parser plugins failed", err)
			plugins = nil
		}
		registry := parser.NewRegistry(plugins...)
		cs := charset.New(cfg.Charsets, true, true)
		pctx := parser.Context{Store: store, Charset: cs}
		return scanner.New(store, registry, pctx, log)
	}

	coord := daemon.New(store, cfg, newScanner, driver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mw := watcher.NewWatcher(coord, time.Second)
	go func() {
		if err := mw.Start(ctx); err != nil {
			log.Warn("lms-scand", "mount watcher unavailable", logging.F("error", err.Error()))
		}
	}()
	defer mw.Close()

	srv := api.NewServer(coord, log)
	httpSrv := api.NewHTTPServer(cfg.Listen, srv.Handler())

	errCh := make(chan error, 2)
	go func() { errCh <- coord.Run(ctx) }()
	go func() {
		log.Info("lms-scand", "listening", logging.F("addr", cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("lms-scand", "received signal, shutting down", logging.F("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("lms-scand", "fatal error", err)
		}
	}

	cancel()
	httpSrv.Close()
	return nil
}

func allParserNames(cfg *config.Config) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, cat := range cfg.Categories {
		for _, n := range config.ParserNames(cat) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return []string{"all"}, nil
	}
	return names, nil
}

// Command lms-scan is the single-shot scanner CLI: it runs one scan or one
// query directly against a database, without a daemon coordinator in
// front, filling the traditional role of lightmediascanner's own "test"
// binary (SPEC_FULL.md §6).
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/parser/catalog"
	"github.com/lms-scan/lms-scan/internal/paths"
	"github.com/lms-scan/lms-scan/internal/scanner"
)

// If re-invoked with the hidden worker flag, this binary is the scan
// worker's own entry point (dual-process mode, spec.md §5/§9).
func init() {
	if len(os.Args) > 1 && os.Args[1] == scanner.WorkerFlag {
		dbPath := os.Args[2]
		var parserNames, charsetNames []string
		if os.Args[3] != "" {
			parserNames = strings.Split(os.Args[3], ",")
		}
		if os.Args[4] != "" {
			charsetNames = strings.Split(os.Args[4], ",")
		}
		commitInterval, err := strconv.Atoi(os.Args[5])
		if err != nil {
			commitInterval = 100
		}
		if err := scanner.RunWorker(dbPath, parserNames, charsetNames, commitInterval); err != nil {
			fmt.Fprintf(os.Stderr, "lms-scan worker: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
}

var (
	scanPath     string
	queryPath    string
	addParser    []string
	listParsers  bool
	listCategory string
	charsetNames []string
	commitN      int
	timeoutSec   int
	mode         string
	verbose      bool
	dbPath       string
)

func main() {
	cmd := &cobra.Command{
		Use:   "lms-scan",
		Short: "Single-shot media scan/query tool",
		RunE:  run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&scanPath, "scan", "s", "", "scan PATH")
	flags.StringVarP(&queryPath, "query", "S", "", "query already-known media under PATH")
	flags.StringArrayVarP(&addParser, "parser", "p", nil, "add a parser by name (repeatable)")
	flags.BoolVarP(&listParsers, "list-parsers", "P", false, "list available parsers")
	flags.StringVar(&listCategory, "category", "", "restrict --list-parsers to one category")
	flags.StringArrayVarP(&charsetNames, "charset", "c", nil, "charset to try decoding tags with (repeatable)")
	flags.IntVarP(&commitN, "commit-interval", "i", 100, "commit every N successful parses")
	flags.IntVarP(&timeoutSec, "slave-timeout", "t", 60, "dual-process mode worker timeout, seconds")
	flags.StringVarP(&mode, "mode", "m", "dual", "process mode: mono or dual")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	flags.StringVar(&dbPath, "db-path", "", "database path (default: the daemon's default path)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lms-scan: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if listParsers {
		for _, p := range catalog.All() {
			if listCategory != "" {
				matched := false
				for _, c := range p.Categories() {
					if c == listCategory {
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}
			fmt.Println(p.Name())
		}
		return nil
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Config{Level: level})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	path := dbPath
	if path == "" {
		p, err := paths.DefaultDatabasePath()
		if err != nil {
			return fmt.Errorf("resolve default database path: %w", err)
		}
		path = p
	}

	store, err := database.OpenPath(path, false)
	if err != nil {
		return fmt.Errorf("open database %s: %w", path, err)
	}
	defer store.Close()

	if queryPath != "" {
		records, err := store.SelectFilesLike(queryPath)
		if err != nil {
			return fmt.Errorf("query %s: %w", queryPath, err)
		}
		for _, r := range records {
			state := "live"
			if r.Dtime != 0 {
				state = "tombstoned"
			}
			fmt.Printf("%s\tcategory=%s\tparser=%s\t%s\n", r.Path, r.Category, r.Parser, state)
		}
		return nil
	}

	if scanPath == "" {
		return fmt.Errorf("one of -s PATH or -S PATH is required")
	}

	names := addParser
	if len(names) == 0 {
		names = []string{"all"}
	}
	plugins, err := catalog.ByNames(names)
	if err != nil {
		return fmt.Errorf("resolve parsers: %w", err)
	}
	registry := parser.NewRegistry(plugins...)
	cs := charset.New(charsetNames, true, true)
	pctx := parser.Context{Store: store, Charset: cs}

	sc := scanner.New(store, registry, pctx, log)

	var driver *scanner.Driver
	if mode == "dual" {
		driver = scanner.NewDriver(path, names, charsetNames, time.Duration(timeoutSec)*time.Second, commitN)
		if err := driver.Start(); err != nil {
			return fmt.Errorf("start worker process: %w", err)
		}
		defer driver.Stop()
	} else if mode != "mono" {
		return fmt.Errorf("invalid -m value %q, expected mono or dual", mode)
	}

	result, err := sc.Scan(context.Background(), scanner.ScanOptions{
		Roots:          []string{scanPath},
		Driver:         driver,
		CommitInterval: commitN,
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", scanPath, err)
	}

	fmt.Printf("scanned %d new/updated, %d skipped, %d deleted, %d errors\n",
		result.FilesScanned, result.FilesSkipped, result.FilesRemoved, len(result.Errors))
	return nil
}

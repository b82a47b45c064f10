// Command lmsctl is the control-surface client for lms-scand: a
// single-positional-verb CLI (status/monitor/write-lock/scan/stop/help)
// matching spec.md §6's `…ctl` exactly, with the same exit-code policy
// (0 on success, non-zero on any RPC failure or lost lock).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	addr  string
	token string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lmsctl",
		Short: "Control client for the lms-scand media scan daemon",
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:4180", "daemon control address")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "client token identifying this caller to the write-lock (default: a fresh random token)")

	rootCmd.AddCommand(newStatusCmd(), newMonitorCmd(), newWriteLockCmd(), newScanCmd(), newStopCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lmsctl: %v\n", err)
		os.Exit(1)
	}
}

func clientToken() string {
	if token != "" {
		return token
	}
	return uuid.NewString()
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the daemon's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(addr, clientToken())
			st, err := c.Status()
			if err != nil {
				return err
			}
			fmt.Printf("database:     %s\n", st.DataBasePath)
			fmt.Printf("scanning:     %v\n", st.IsScanning)
			fmt.Printf("write-locked: %v\n", st.WriteLocked)
			fmt.Printf("update id:    %d\n", st.UpdateID)
			for name, cat := range st.Categories {
				fmt.Printf("category %s: dirs=%v parsers=%v\n", name, cat.Dirs, cat.Parsers)
			}
			return nil
		},
	}
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Live progress view fed by the daemon's event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(newClient(addr, clientToken()))
		},
	}
}

func newWriteLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-lock",
		Short: "Acquire the write lock and hold it until this process is terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(addr, clientToken())
			if err := c.AcquireWriteLock(); err != nil {
				return err
			}
			fmt.Println("write lock acquired, holding until interrupted (Ctrl-C)")

			events := make(chan sseEvent, 1)
			stop, err := c.StreamEvents(events)
			if err != nil {
				// The lock is held even if the notifying stream can't be
				// opened; just drop the auto-release-on-disconnect guarantee
				// and block until the user interrupts.
				fmt.Fprintf(os.Stderr, "lmsctl: event stream unavailable, lock will not auto-release: %v\n", err)
				select {}
			}
			defer stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			for {
				select {
				case <-sig:
					return c.ReleaseWriteLock()
				case _, ok := <-events:
					if !ok {
						return fmt.Errorf("event stream closed, write lock auto-released")
					}
				}
			}
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [CATEGORY:PATH ...]",
		Short: "Request a scan, optionally scoped to category:path pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := map[string][]string{}
			for _, arg := range args {
				cat, path, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("invalid argument %q, expected CATEGORY:PATH", arg)
				}
				spec[cat] = append(spec[cat], path)
			}
			c := newClient(addr, clientToken())
			if err := c.Scan(spec); err != nil {
				return err
			}
			fmt.Println("scan requested")
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the scan currently in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(addr, clientToken())
			if err := c.Stop(); err != nil {
				return err
			}
			fmt.Println("stop requested")
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theia-log/theia/pkg/broker"
	"github.com/theia-log/theia/pkg/collector"
	"github.com/theia-log/theia/pkg/metrics"
	"github.com/theia-log/theia/pkg/store"
	"github.com/theia-log/theia/pkg/store/naive"
	"github.com/theia-log/theia/pkg/store/rdbs"
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the collector server",
	Long: `Run the collector server.

The collector terminates watcher push channels on /event, historical
queries on /find and live subscriptions on /live, and exposes /metrics
and /healthz on the same listener.

Events are persisted either to a directory of time-bucketed segment
files (--store file) or to a relational database (--store rdbs).`,
	RunE: runCollector,
}

func init() {
	collectorCmd.Flags().String("host", "0.0.0.0", "Bind address")
	collectorCmd.Flags().IntP("port", "p", collector.DefaultPort, "Bind port")
	collectorCmd.Flags().StringP("data-dir", "d", "./data", "Data directory for the file store")
	collectorCmd.Flags().String("store", "file", "Store backend: file or rdbs")
	collectorCmd.Flags().String("db-url", "", "Database URL or path for the rdbs store")
}

func runCollector(cmd *cobra.Command, args []string) error {
	initLogging(cmd)

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	storeType, _ := cmd.Flags().GetString("store")
	dbURL, _ := cmd.Flags().GetString("db-url")

	st, err := openStore(storeType, dataDir, dbURL)
	if err != nil {
		return err
	}
	metrics.RegisterComponent("store", true, "")

	br := broker.New()
	metrics.RegisterComponent("broker", true, "")

	srv := collector.NewServer(collector.Config{Host: host, Port: port}, st, br)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	fmt.Printf("Collector listening on %s:%d (%s store)\n", host, port, storeType)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		_ = st.Close()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: unclean server shutdown: %v\n", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("failed to flush store: %w", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}

func openStore(storeType, dataDir, dbURL string) (store.EventStore, error) {
	switch storeType {
	case "file":
		return naive.Open(dataDir)
	case "rdbs":
		if dbURL == "" {
			return nil, fmt.Errorf("--db-url is required with the rdbs store")
		}
		return rdbs.Open(dbURL)
	default:
		return nil, fmt.Errorf("unknown store type %q (want file or rdbs)", storeType)
	}
}

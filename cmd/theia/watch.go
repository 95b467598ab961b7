package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theia-log/theia/pkg/config"
	"github.com/theia-log/theia/pkg/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail log files and ship them to a collector",
	Long: `Tail log files and ship every appended line to a collector.

Files can be given on the command line or through a YAML config file:

  # Follow two files, alias one of them
  theia watch --collector logs.internal:6433 \
      --file /var/log/nginx/access.log:nginx-access \
      --file /var/log/nginx/error.log \
      --tag prod --tag web

  # Same thing from a config file
  theia watch --config /etc/theia/watch.yaml

A --file value may carry an alias after a colon; the alias becomes the
event source instead of the path. With --data-dir set, read offsets
survive restarts and the watcher resumes where it stopped.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("collector", "c", "localhost:6433", "Collector address (host:port)")
	watchCmd.Flags().StringArrayP("file", "f", nil, "File to tail, optionally path:alias (repeatable)")
	watchCmd.Flags().StringArrayP("tag", "t", nil, "Tag attached to every event (repeatable)")
	watchCmd.Flags().StringP("data-dir", "d", "", "Directory for the offsets database")
	watchCmd.Flags().String("config", "", "Watcher YAML config file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	initLogging(cmd)

	cfg, err := watchConfig(cmd)
	if err != nil {
		return err
	}

	w, err := watcher.New(*cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nStopping watcher...")
		cancel()
	}()

	fmt.Printf("Watching %d file(s), shipping to %s\n", len(cfg.Files), cfg.Collector)
	return w.Run(ctx)
}

func watchConfig(cmd *cobra.Command) (*watcher.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadWatch(path)
		if err != nil {
			return nil, err
		}
		return &watcher.Config{
			Collector: loaded.Collector,
			Files:     loaded.Files,
			Tags:      loaded.Tags,
			DataDir:   loaded.DataDir,
		}, nil
	}

	collectorAddr, _ := cmd.Flags().GetString("collector")
	files, _ := cmd.Flags().GetStringArray("file")
	tags, _ := cmd.Flags().GetStringArray("tag")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	if len(files) == 0 {
		return nil, fmt.Errorf("nothing to watch: pass --file or --config")
	}

	cfg := &watcher.Config{
		Collector: collectorAddr,
		Tags:      tags,
		DataDir:   dataDir,
	}
	for _, spec := range files {
		path, alias, _ := strings.Cut(spec, ":")
		cfg.Files = append(cfg.Files, config.WatchFile{Path: path, Alias: alias})
	}
	return cfg, nil
}

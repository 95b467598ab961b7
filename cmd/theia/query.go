package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theia-log/theia/pkg/client"
	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Query the collector for stored events",
	Long: `Query the collector for historical events matching a filter.

All pattern flags take RE2 regular expressions matched as unanchored
substring searches:

  theia find --collector logs.internal:6433 \
      --tag 'web.*' --content '\[ERR\]' --start 1509989000 --order desc`,
	RunE: runFind,
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Stream matching events as they arrive",
	Long: `Subscribe to the collector and print matching events as they
arrive. Runs until interrupted.`,
	RunE: runLive,
}

func init() {
	for _, cmd := range []*cobra.Command{findCmd, liveCmd} {
		cmd.Flags().StringP("collector", "c", "localhost:6433", "Collector address (host:port)")
		cmd.Flags().String("id", "", "Regex matched against event ids")
		cmd.Flags().String("source", "", "Regex matched against event sources")
		cmd.Flags().String("content", "", "Regex matched against event content")
		cmd.Flags().StringArrayP("tag", "t", nil, "Regex matched against event tags (repeatable, any may match)")
		cmd.Flags().Int64("start", 0, "Earliest timestamp, integer seconds")
		cmd.Flags().Int64("end", 0, "Latest timestamp, integer seconds")
	}
	findCmd.Flags().String("order", filter.OrderAsc, "Result order: asc or desc")
}

func runFind(cmd *cobra.Command, args []string) error {
	initLogging(cmd)

	addr, _ := cmd.Flags().GetString("collector")
	f := filterFromFlags(cmd)
	f.Order, _ = cmd.Flags().GetString("order")

	return client.NewQuery(addr).Find(context.Background(), f, printEvent)
}

func runLive(cmd *cobra.Command, args []string) error {
	initLogging(cmd)

	addr, _ := cmd.Flags().GetString("collector")
	f := filterFromFlags(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return client.NewQuery(addr).Live(ctx, f, printEvent)
}

func filterFromFlags(cmd *cobra.Command) *filter.Filter {
	f := &filter.Filter{}
	f.ID, _ = cmd.Flags().GetString("id")
	f.Source, _ = cmd.Flags().GetString("source")
	f.Content, _ = cmd.Flags().GetString("content")
	f.Tags, _ = cmd.Flags().GetStringArray("tag")

	if cmd.Flags().Changed("start") {
		start, _ := cmd.Flags().GetInt64("start")
		f.Start = &start
	}
	if cmd.Flags().Changed("end") {
		end, _ := cmd.Flags().GetInt64("end")
		f.End = &end
	}
	return f
}

// printEvent renders one event per block: a header line, then the
// content indented the way multi-line log payloads read best.
func printEvent(ev *model.Event) error {
	header := fmt.Sprintf("%s  %s  [%s]", model.FormatTimestamp(ev.Timestamp), ev.Source, strings.Join(ev.Tags, ","))
	fmt.Println(header)
	for _, line := range strings.Split(ev.Content, "\n") {
		fmt.Println("  " + line)
	}
	return nil
}

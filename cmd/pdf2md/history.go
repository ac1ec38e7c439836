// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/journal"
	"github.com/pdiddy/pdf2md/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the journal",
	Long: `History reads the SQLite run journal and lists the most recent document
runs, newest first. Use --run with a run ID to show its per-page outcomes.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	historyCmd.Flags().String("run", "", "show page outcomes for this run ID")
	historyCmd.Flags().Bool("json", false, "output JSON instead of a table")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("journal")
	if path == "" {
		return fmt.Errorf("no journal configured: pass --journal or set journal in pdf2md.yaml")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := context.Background()

	if runID != "" {
		pages, err := j.Pages(ctx, runID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, pages)
		}
		printPages(os.Stdout, pages)
		return nil
	}

	runs, err := j.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, runs)
	}
	printRuns(os.Stdout, runs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []types.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-7s  %-30s  %5s  %6s  %-20s  %s\n",
		"Run", "Mode", "Document", "Pages", "Failed", "Started", "Took")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		doc := r.Document
		if len(doc) > 30 {
			doc = doc[:27] + "..."
		}
		took := "running"
		if r.Finished() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%-36s  %-7s  %-30s  %5d  %6d  %-20s  %s\n",
			r.ID, r.Mode, doc, r.Pages, r.Failed, r.StartedAt.Local().Format("2006-01-02 15:04:05"), took)
	}
	fmt.Fprintf(w, "\n%d run(s)\n", len(runs))
}

func printPages(w io.Writer, pages []types.PageResult) {
	if len(pages) == 0 {
		fmt.Fprintln(w, "No pages recorded for this run.")
		return
	}
	fmt.Fprintf(w, "%-5s  %-6s  %-8s  %-7s  %s\n", "Page", "Status", "Attempts", "Figures", "Error")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, p := range pages {
		fmt.Fprintf(w, "%-5d  %-6s  %-8d  %-7d  %s\n", p.Page, p.Status, p.Attempts, len(p.Figures), p.Error)
	}
}

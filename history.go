package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdfwatch/internal/history"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent merge cycles",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "number of cycles to show")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}

	path := resolvedCfg.HistoryPath

	// Listing must not create an empty database as a side effect.
	if _, err := os.Stat(path); path == "" || errors.Is(err, os.ErrNotExist) {
		if flagJSON {
			return printHistoryJSON(cmd.OutOrStdout(), []history.Cycle{})
		}

		fmt.Fprintln(cmd.OutOrStdout(), "No cycles recorded.")

		return nil
	}

	store, err := history.Open(cmd.Context(), path, buildLogger())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	cycles, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printHistoryJSON(cmd.OutOrStdout(), cycles)
	}

	if len(cycles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cycles recorded.")

		return nil
	}

	printHistoryTable(cmd.OutOrStdout(), cycles, time.Now())

	return nil
}

func printHistoryJSON(w io.Writer, cycles []history.Cycle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(cycles)
}

func printHistoryTable(w io.Writer, cycles []history.Cycle, now time.Time) {
	headers := []string{"STARTED", "AGE", "OUTCOME", "INPUTS", "PAGES", "FAILED", "DURATION", "OUTPUT"}
	rows := make([][]string, 0, len(cycles))

	for i := range cycles {
		c := &cycles[i]

		output := "-"
		if c.OutputPath != "" {
			output = filepath.Base(c.OutputPath)
		}

		rows = append(rows, []string{
			formatTime(c.StartedAt),
			formatAge(c.StartedAt, now),
			string(c.Outcome),
			strconv.Itoa(c.Inputs),
			strconv.Itoa(c.TotalPages),
			fmt.Sprintf("%d/%d", c.ReadFailures, c.MoveFailures),
			c.Duration().Round(time.Millisecond).String(),
			output,
		})
	}

	printTable(w, headers, rows)
}

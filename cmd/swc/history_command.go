package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"swc/internal/history"
	"swc/internal/job"
	"swc/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var states []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded job outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := history.Filter{Limit: limit}
			for _, state := range states {
				filter.States = append(filter.States, job.State(strings.ToLower(strings.TrimSpace(state))))
			}
			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				for _, e := range entries {
					if err := writeJSONLine(out, historyJSON(e)); err != nil {
						return err
					}
				}
				return nil
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No recorded outcomes")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only show outcomes in these states (succeeded, failed, cancelled)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per entry")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries\n", removed)
			return nil
		},
	}
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (set history.enabled = true)")
	}
	return history.Open(cfg.HistoryPath())
}

func renderHistoryTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		label := e.Title
		if label == "" {
			label = e.Source
		}
		result := e.Artifact
		if e.State != job.StateSucceeded {
			result = e.ErrorMessage
			if e.ErrorKind != "" {
				result = strings.TrimSpace(fmt.Sprintf("%s: %s", textutil.Label(string(e.ErrorKind)), e.ErrorMessage))
			}
		}
		rows = append(rows, []string{
			e.FinishedAt.Local().Format(time.DateTime),
			label,
			e.Format,
			string(e.State),
			fmt.Sprintf("%d/%d", e.DownloadAttempts, e.TranscodeAttempts),
			formatElapsed(e.Elapsed()),
			result,
		})
	}
	columns := []tableColumn{
		{Header: "Finished"},
		{Header: "Title", MaxWidth: 40},
		{Header: "Format"},
		{Header: "State"},
		{Header: "Attempts", Align: text.AlignRight},
		{Header: "Elapsed", Align: text.AlignRight},
		{Header: "Result", MaxWidth: 60},
	}
	return renderTable(columns, rows)
}

type historyEntryJSON struct {
	JobID             string `json:"job_id"`
	Source            string `json:"source"`
	Title             string `json:"title,omitempty"`
	Format            string `json:"format"`
	Quality           string `json:"quality,omitempty"`
	State             string `json:"state"`
	Stage             string `json:"stage,omitempty"`
	ErrorKind         string `json:"error_kind,omitempty"`
	Error             string `json:"error,omitempty"`
	Artifact          string `json:"artifact,omitempty"`
	DownloadAttempts  int    `json:"download_attempts"`
	TranscodeAttempts int    `json:"transcode_attempts"`
	FinishedAt        string `json:"finished_at,omitempty"`
}

func historyJSON(e history.Entry) historyEntryJSON {
	out := historyEntryJSON{
		JobID:             e.JobID,
		Source:            e.Source,
		Title:             e.Title,
		Format:            e.Format,
		Quality:           e.Quality,
		State:             string(e.State),
		Stage:             string(e.Stage),
		ErrorKind:         string(e.ErrorKind),
		Error:             e.ErrorMessage,
		Artifact:          e.Artifact,
		DownloadAttempts:  e.DownloadAttempts,
		TranscodeAttempts: e.TranscodeAttempts,
	}
	if !e.FinishedAt.IsZero() {
		out.FinishedAt = e.FinishedAt.UTC().Format(time.RFC3339)
	}
	return out
}

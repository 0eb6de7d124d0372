package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelgen/internal/ledger"
	"reelgen/internal/notifications"
)

const shortRunIDLength = 8

type runView struct {
	ID           string        `json:"id"`
	Command      string        `json:"command"`
	Theme        string        `json:"theme,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	FinalOutput  string        `json:"final_output,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
	Beats        []beatView    `json:"beats,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

type beatView struct {
	BeatID    int    `json:"beat_id"`
	Success   bool   `json:"success"`
	Seed      string `json:"seed,omitempty"`
	Duration  int    `json:"duration_seconds"`
	Operation string `json:"operation,omitempty"`
	Video     string `json:"video,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or the beats of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunTable(views))
				return nil
			}

			run, err := findRun(runs, args[0])
			if err != nil {
				return err
			}
			view := newRunView(run)
			beats, err := store.Beats(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			for _, beat := range beats {
				view.Beats = append(view.Beats, beatView{
					BeatID:    beat.BeatID,
					Success:   beat.Success,
					Seed:      beat.Seed,
					Duration:  beat.DurationSeconds,
					Operation: beat.Operation,
					Video:     beat.VideoPath,
					Reason:    beat.Reason,
					Error:     beat.ErrorMessage,
				})
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}
			renderRunDetail(cmd, view)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRunView(run ledger.Run) runView {
	return runView{
		ID:           run.ID,
		Command:      run.Command,
		Theme:        run.Theme,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Succeeded:    run.Succeeded,
		Failed:       run.Failed,
		FinalOutput:  run.FinalOutput,
		ErrorMessage: run.ErrorMessage,
		Duration:     run.Duration(),
	}
}

// findRun matches a full id or a unique prefix among runs.
func findRun(runs []ledger.Run, id string) (ledger.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ledger.Run{}, errors.New("run id is required")
	}
	var matches []ledger.Run
	for _, run := range runs {
		if run.ID == id {
			return run, nil
		}
		if strings.HasPrefix(run.ID, id) {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return ledger.Run{}, fmt.Errorf("run %s not found in recent history", id)
	case 1:
		return matches[0], nil
	default:
		return ledger.Run{}, fmt.Errorf("run id %s is ambiguous (%d matches)", id, len(matches))
	}
}

func renderRunTable(views []runView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			shortID(v.ID),
			v.StartedAt.Local().Format("2006-01-02 15:04"),
			v.Command,
			displayThemeOrDash(v.Theme),
			v.Status,
			fmt.Sprintf("%d/%d", v.Succeeded, v.Succeeded+v.Failed),
			formatDuration(v.Duration),
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Command", "Theme", "Status", "Beats", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func renderRunDetail(cmd *cobra.Command, v runView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", v.ID)
	fmt.Fprintf(out, "Command:  %s\n", v.Command)
	fmt.Fprintf(out, "Theme:    %s\n", displayThemeOrDash(v.Theme))
	fmt.Fprintf(out, "Status:   %s\n", v.Status)
	fmt.Fprintf(out, "Started:  %s\n", v.StartedAt.Local().Format(time.RFC1123))
	if v.FinalOutput != "" {
		fmt.Fprintf(out, "Output:   %s\n", v.FinalOutput)
	}
	if v.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", v.ErrorMessage)
	}
	if len(v.Beats) == 0 {
		fmt.Fprintln(out, "No beats recorded")
		return
	}
	rows := make([][]string, 0, len(v.Beats))
	for _, b := range v.Beats {
		result := "ok"
		if !b.Success {
			result = b.Reason
		}
		rows = append(rows, []string{
			strconv.Itoa(b.BeatID),
			result,
			b.Seed,
			fmt.Sprintf("%ds", b.Duration),
			b.Operation,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Beat", "Result", "Seed", "Length", "Operation"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func shortID(id string) string {
	if len(id) <= shortRunIDLength {
		return id
	}
	return id[:shortRunIDLength]
}

func displayThemeOrDash(theme string) string {
	if strings.TrimSpace(theme) == "" {
		return "-"
	}
	return notifications.DisplayTheme(theme)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded detection sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSessions(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(ctx context.Context) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Database unavailable", err, nil)
		return err
	}
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		utils.ShowError("Failed to list sessions", err, nil)
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet. Run 'skingrid detect --record'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tSTARTED\tDURATION\tFRAMES\tAVG FPS\tAVG BOXES")
	fmt.Fprintln(w, "--\t-----\t-------\t--------\t------\t-------\t---------")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1f\t%.1f\n",
			s.ID,
			labelOrDash(s),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			sessionDuration(s),
			s.Frames,
			s.AvgFPS,
			s.AvgHighlighted,
		)
	}
	w.Flush()
	return nil
}

func labelOrDash(s types.SessionInfo) string {
	if s.Label == "" {
		return "-"
	}
	return s.Label
}

func sessionDuration(s types.SessionInfo) string {
	if s.EndedAt == nil {
		return "running"
	}
	return fmtTime(s.EndedAt.Sub(s.StartedAt).Seconds())
}

// fmtTime renders seconds as MM:SS, or HH:MM:SS past an hour.
func fmtTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

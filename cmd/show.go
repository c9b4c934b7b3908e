package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/andresmejia3/skingrid/internal/store"
	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/spf13/cobra"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show <session_id>",
	Short: "Show a recorded session and its most recent frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runShow(cmd.Context(), args[0], showLimit)
	},
}

func init() {
	showCmd.Flags().IntVarP(&showLimit, "frames", "n", 10, "Number of recent frames to print")
	rootCmd.AddCommand(showCmd)
}

func runShow(ctx context.Context, id string, limit int) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Database unavailable", err, nil)
		return err
	}

	info, err := db.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			fmt.Printf("❌ No session with id '%s'.\n", id)
			return err
		}
		utils.ShowError("Failed to load session", err, nil)
		return err
	}

	fmt.Printf("📼 Session %s\n", info.ID)
	fmt.Printf("   Label:       %s\n", labelOrDash(info))
	fmt.Printf("   Source:      %s\n", info.Source)
	fmt.Printf("   Started:     %s (%s)\n", info.StartedAt.Local().Format("2006-01-02 15:04:05"), sessionDuration(info))
	fmt.Printf("   Working:     %dx%d, boxes %dx%d\n", info.WorkWidth, info.WorkHeight, info.BoxWidth, info.BoxHeight)
	fmt.Printf("   Color range: lower=%v upper=%v\n", info.Lower, info.Upper)
	fmt.Printf("   Frames:      %d (avg %.2f FPS, %.2f boxes highlighted)\n", info.Frames, info.AvgFPS, info.AvgHighlighted)

	if limit <= 0 {
		return nil
	}
	frames, err := db.RecentFrames(ctx, info.ID, limit)
	if err != nil {
		utils.ShowError("Failed to retrieve frames", err, nil)
		return err
	}
	if len(frames) == 0 {
		fmt.Println("No frames recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\nFRAME\tGRID\tLIT\tMEAN\tFPS\tHIGHLIGHTED")
	fmt.Fprintln(w, "-----\t----\t---\t----\t---\t-----------")
	for _, f := range frames {
		fmt.Fprintf(w, "%d\t%dx%d\t%s\t%.2f\t%.1f\t%s\n", f.Index, f.Rows, f.Cols, litBoxes(f), f.Mean, f.FPS, formatCells(f))
	}
	w.Flush()
	return nil
}

// litBoxes renders the highlighted share of the grid as "lit/total".
func litBoxes(f types.FrameStats) string {
	return fmt.Sprintf("%d/%d", len(f.Highlighted), f.Boxes())
}

// formatCells renders highlighted boxes as (row,col) pairs.
func formatCells(f types.FrameStats) string {
	if len(f.Highlighted) == 0 || f.Cols == 0 {
		return "-"
	}
	parts := make([]string, 0, len(f.Highlighted))
	for _, i := range f.Highlighted {
		parts = append(parts, fmt.Sprintf("(%d,%d)", i/f.Cols, i%f.Cols))
	}
	return strings.Join(parts, " ")
}

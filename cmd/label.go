package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:   "label <session_id> <label>",
	Short: "Attach a label to a recorded session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runLabel(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(ctx context.Context, id, label string) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Database unavailable", err, nil)
		return err
	}

	if err := db.RenameSession(ctx, id, label); err != nil {
		utils.ShowError("Failed to label session", err, nil)
		return err
	}

	fmt.Printf("✅ Session %s labeled as '%s'\n", id, label)
	return nil
}

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB        bool
	resetSnapshots bool
	resetYes       bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored state (session database, calibration snapshots)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetSnapshots {
			resetDB = true
			resetSnapshots = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB && (resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all session tables?")) {
			fmt.Println("🗑️  Clearing Database...")
			db, err := openStore(cmd.Context())
			if err != nil {
				utils.ShowError("Database unavailable", err, nil)
				return err
			}
			if err := db.Reset(cmd.Context()); err != nil {
				utils.ShowError("Failed to reset database", err, nil)
				return err
			}
		}

		if resetSnapshots && (resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to delete all calibration snapshots?")) {
			fmt.Println("🗑️  Clearing Snapshots...")
			removeDir(filepath.Join(Cfg.DataDir, "snapshots"))
		}

		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "sessions", false, "Clear the session database")
	resetCmd.Flags().BoolVar(&resetSnapshots, "snapshots", false, "Clear calibration snapshots")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}

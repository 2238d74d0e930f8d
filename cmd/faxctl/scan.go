package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fax-review-queue/internal/bootstrap"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

var scanFolder string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one pass over the watch folder and ingest new faxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if scanFolder != "" {
				if _, err := app.Settings.Update(cmd.Context(), domain.SettingsPatch{WatchFolder: &scanFolder}); err != nil {
					return err
				}
			}
			report, err := app.Watcher.ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: discovered %d, ingested %d, skipped %d, failed %d\n",
				report.Folder, report.Discovered, report.Ingested, report.Skipped, report.Failed)
			return nil
		})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFolder, "folder", "", "watch folder to scan; saved to settings")
	rootCmd.AddCommand(scanCmd)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fax-review-queue/internal/bootstrap"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/export"
)

var (
	reviewer       string
	overrideTo     string
	overrideReason string
	exportOutput   string
	exportStatus   string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print queue summary and lifetime statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			summary, err := app.Stats.Summary(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := app.Stats.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"summary": summary, "stats": stats})
		})
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <fax-id>...",
	Short: "Approve the AI category for one or more categorized faxes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewer == "" {
			return errors.New("--reviewer is required")
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			result := app.Review.BatchApprove(cmd.Context(), args, reviewer)
			for _, f := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", f.ID, f.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %d of %d faxes\n", len(result.Succeeded), len(args))
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d faxes not approved", len(result.Failed))
			}
			return nil
		})
	},
}

var overrideCmd = &cobra.Command{
	Use:   "override <fax-id>...",
	Short: "Move one or more categorized faxes to a reviewer-chosen category",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewer == "" {
			return errors.New("--reviewer is required")
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			category := app.Taxonomy.Normalize(overrideTo)
			result, err := app.Review.BatchReview(cmd.Context(), args, reviewer, domain.ReviewOverride, category, overrideReason)
			if err != nil {
				return err
			}
			for _, f := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", f.ID, f.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "overrode %d of %d faxes to %s\n", len(result.Succeeded), len(args), category)
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d faxes not overridden", len(result.Failed))
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write fax records to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := domain.FaxFilter{Limit: domain.MaxListLimit}
		if exportStatus != "" {
			status, ok := domain.ParseStatus(exportStatus)
			if !ok {
				return fmt.Errorf("unknown status %q", exportStatus)
			}
			filter.Status = status
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			records, err := app.Review.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOutput, err)
			}
			if err := export.WriteQueueXLSX(f, records); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d faxes to %s\n", len(records), exportOutput)
			return nil
		})
	},
}

func init() {
	approveCmd.Flags().StringVar(&reviewer, "reviewer", "", "name recorded as the approving reviewer")
	overrideCmd.Flags().StringVar(&reviewer, "reviewer", "", "name recorded as the reviewer")
	overrideCmd.Flags().StringVar(&overrideTo, "category", "", "target category value or label")
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "why the AI category was wrong")
	_ = overrideCmd.MarkFlagRequired("category")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "fax-queue.xlsx", "output file")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only export faxes in this status")
	rootCmd.AddCommand(statsCmd, approveCmd, overrideCmd, exportCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fax-review-queue/internal/bootstrap"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change operational settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current settings as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			s, err := app.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one setting: watch_folder, auto_process, require_review or confidence_threshold",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := parseSettingsPatch(args[0], args[1])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			s, err := app.Settings.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		})
	},
}

func parseSettingsPatch(key, value string) (domain.SettingsPatch, error) {
	var patch domain.SettingsPatch
	switch key {
	case "watch_folder":
		patch.WatchFolder = &value
	case "auto_process", "require_review":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return patch, fmt.Errorf("%s expects true or false: %w", key, err)
		}
		if key == "auto_process" {
			patch.AutoProcess = &b
		} else {
			patch.RequireReview = &b
		}
	case "confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return patch, fmt.Errorf("confidence_threshold expects a number: %w", err)
		}
		patch.ConfidenceThreshold = &f
	default:
		return patch, fmt.Errorf("unknown setting %q", key)
	}
	return patch, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage extraction field settings",
	Long:  "Shows and edits the per-type field definitions that drive extraction and draft layout.",
}

// -- settings show --

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current field settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSchema()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(s)
		default:
			return eris.Errorf("unsupported format: %s", format)
		}
	},
}

// -- settings set-label --

var settingsSetLabelCmd = &cobra.Command{
	Use:   "set-label <type> <key> <label>",
	Short: "Rename a field's display label",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema()
		if err != nil {
			return err
		}

		t := model.RecordType(args[0])
		if err := schema.SetLabel(s, t, args[1], args[2]); err != nil {
			return err
		}
		if err := schema.Save(cfg.Settings.Path, s); err != nil {
			return err
		}

		fmt.Printf("set %s.%s label to %q\n", t, args[1], args[2])
		return nil
	},
}

// -- settings add --

var settingsAddCmd = &cobra.Command{
	Use:   "add <type> <label>",
	Short: "Add a custom field to a record type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema()
		if err != nil {
			return err
		}

		t := model.RecordType(args[0])
		key := schema.AddField(s, t, args[1])
		if err := schema.Save(cfg.Settings.Path, s); err != nil {
			return err
		}

		fmt.Printf("added field %s to %s\n", key, t)
		return nil
	},
}

// -- settings remove --

var settingsRemoveCmd = &cobra.Command{
	Use:   "remove <type> <key>",
	Short: "Remove a field from a record type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema()
		if err != nil {
			return err
		}

		t := model.RecordType(args[0])
		if err := schema.RemoveField(s, t, args[1]); err != nil {
			return err
		}
		if err := schema.Save(cfg.Settings.Path, s); err != nil {
			return err
		}

		fmt.Printf("removed field %s from %s\n", args[1], t)
		return nil
	},
}

// -- settings reset --

var settingsResetCmd = &cobra.Command{
	Use:   "reset <type>",
	Short: "Restore a record type's fields to the defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema()
		if err != nil {
			return err
		}

		t := model.RecordType(args[0])
		schema.Reset(s, t)
		if err := schema.Save(cfg.Settings.Path, s); err != nil {
			return err
		}

		fmt.Printf("reset %s fields to defaults\n", t)
		return nil
	},
}

func init() {
	settingsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetLabelCmd, settingsAddCmd, settingsRemoveCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

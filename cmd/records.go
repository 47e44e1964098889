package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kaigo-ai/carelog/internal/export"
	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage stored care records",
	Long:  "Commands for listing, viewing, editing, and exporting care records.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List care records, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(records)
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "records show %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- records add --

var recordsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a record manually",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		typeFlag, _ := cmd.Flags().GetString("type")
		detailFlags, _ := cmd.Flags().GetStringSlice("detail")
		atFlag, _ := cmd.Flags().GetString("at")

		recordType := model.CoerceRecordType(typeFlag)
		details, err := parseDetailFlags(detailFlags)
		if err != nil {
			return err
		}
		recordedAt, err := parseWhen(atFlag)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.CreateRecord(ctx, recordType, details, recordedAt)
		if err != nil {
			return eris.Wrap(err, "records add")
		}

		fmt.Printf("created record %s\n", rec.ID)
		return nil
	},
}

// -- records update --

var recordsUpdateCmd = &cobra.Command{
	Use:   "update <record-id>",
	Short: "Update a record's type, details, or timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "records update %s", args[0])
		}

		if typeFlag, _ := cmd.Flags().GetString("type"); typeFlag != "" {
			rec.RecordType = model.CoerceRecordType(typeFlag)
		}
		if atFlag, _ := cmd.Flags().GetString("at"); atFlag != "" {
			at, err := parseWhen(atFlag)
			if err != nil {
				return err
			}
			rec.RecordedAt = at
		}
		detailFlags, _ := cmd.Flags().GetStringSlice("detail")
		updates, err := parseDetailFlags(detailFlags)
		if err != nil {
			return err
		}
		for k, v := range updates {
			if v == "" {
				delete(rec.Details, k)
				continue
			}
			if rec.Details == nil {
				rec.Details = make(map[string]string)
			}
			rec.Details[k] = v
		}

		if err := st.UpdateRecord(ctx, rec.ID, rec.RecordType, rec.Details, rec.RecordedAt); err != nil {
			return eris.Wrapf(err, "records update %s", args[0])
		}

		fmt.Printf("updated record %s\n", rec.ID)
		return nil
	},
}

// -- records delete --

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteRecord(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "records delete %s", args[0])
		}

		fmt.Printf("deleted record %s\n", args[0])
		return nil
	},
}

// -- records stats --

var recordsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count records per type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, err := sinceFromFlags(cmd)
		if err != nil {
			return err
		}

		counts, err := st.CountByType(ctx, since)
		if err != nil {
			return eris.Wrap(err, "records stats")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TYPE\tLABEL\tCOUNT")
		total := 0
		for _, t := range model.RecordTypes() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", t, t.Label(), counts[t])
			total += counts[t]
		}
		_, _ = fmt.Fprintf(w, "\ttotal\t%d\n", total)
		return w.Flush()
	},
}

// -- records export --

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as CSV or XLSX",
	Long:  "Writes records to a file or stdout, or uploads them to an FTP server with --ftp.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if format != "csv" && format != "xlsx" {
			return eris.Errorf("unsupported export format: %s", format)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "records export")
		}

		s, err := loadSchema()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		switch format {
		case "csv":
			err = export.WriteCSV(&buf, records, s)
		case "xlsx":
			err = export.WriteXLSX(&buf, records, s)
		}
		if err != nil {
			return err
		}

		ftpURL, _ := cmd.Flags().GetString("ftp")
		if ftpURL != "" {
			uploader := export.NewFTPUploader(export.FTPOptions{
				User:     cfg.Export.FTPUser,
				Password: cfg.Export.FTPPassword,
			})
			target := strings.TrimSuffix(ftpURL, "/") + "/" + export.Filename(format, time.Now())
			if err := uploader.Upload(ctx, target, buf.Bytes()); err != nil {
				return err
			}
			fmt.Printf("uploaded %s\n", target)
			return nil
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			_, err = io.Copy(os.Stdout, &buf)
			return eris.Wrap(err, "write export")
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return eris.Wrap(err, "write export file")
		}
		fmt.Printf("wrote %d records to %s\n", len(records), out)
		return nil
	},
}

// helpers

func filterFromFlags(cmd *cobra.Command) (store.RecordFilter, error) {
	typeFlag, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	since, err := sinceFromFlags(cmd)
	if err != nil {
		return store.RecordFilter{}, err
	}

	return store.RecordFilter{
		Type:   model.RecordType(typeFlag),
		Since:  since,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func sinceFromFlags(cmd *cobra.Command) (time.Time, error) {
	sinceFlag, _ := cmd.Flags().GetString("since")
	if sinceFlag == "" {
		return time.Time{}, nil
	}
	// Relative duration first ("24h"), then absolute formats.
	if d, err := time.ParseDuration(sinceFlag); err == nil {
		return time.Now().Add(-d), nil
	}
	return parseWhen(sinceFlag)
}

func parseDetailFlags(pairs []string) (map[string]string, error) {
	details := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, eris.Errorf("detail must be key=value, got %q", pair)
		}
		details[key] = value
	}
	return details, nil
}

func formatRecordsList(out io.Writer, records []model.CareRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRECORDED\tTYPE\tSUMMARY")
	_, _ = fmt.Fprintln(w, "--\t--------\t----\t-------")

	for _, r := range records {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			id,
			r.RecordedAt.Local().Format("2006-01-02 15:04"),
			r.RecordType.Label(),
			r.Summary(),
		)
	}
	_ = w.Flush()
}

func init() {
	recordsListCmd.Flags().String("type", "", "filter by record type")
	recordsListCmd.Flags().String("since", "", "only records after this time (duration or date)")
	recordsListCmd.Flags().Int("limit", 0, "max records (default 100)")
	recordsListCmd.Flags().Int("offset", 0, "skip this many records")
	recordsListCmd.Flags().Bool("json", false, "print records as JSON")

	recordsAddCmd.Flags().String("type", "other", "record type")
	recordsAddCmd.Flags().StringSlice("detail", nil, "detail field as key=value (repeatable)")
	recordsAddCmd.Flags().String("at", "", "recorded-at timestamp (default now)")

	recordsUpdateCmd.Flags().String("type", "", "new record type")
	recordsUpdateCmd.Flags().StringSlice("detail", nil, "detail field as key=value; empty value removes the key")
	recordsUpdateCmd.Flags().String("at", "", "new recorded-at timestamp")

	recordsStatsCmd.Flags().String("since", "", "only records after this time (duration or date)")

	recordsExportCmd.Flags().String("format", "csv", "export format: csv or xlsx")
	recordsExportCmd.Flags().String("out", "", "output path (default stdout)")
	recordsExportCmd.Flags().String("ftp", "", "FTP directory URL to upload to (ftp://host/path)")
	recordsExportCmd.Flags().String("type", "", "filter by record type")
	recordsExportCmd.Flags().String("since", "", "only records after this time (duration or date)")
	recordsExportCmd.Flags().Int("limit", 0, "max records (default 100)")
	recordsExportCmd.Flags().Int("offset", 0, "skip this many records")

	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsAddCmd, recordsUpdateCmd, recordsDeleteCmd, recordsStatsCmd, recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}

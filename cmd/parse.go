package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/store"
)

var (
	parseFile string
	parseSave bool
	parseJSON bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Extract a structured care record from a free-form note",
	Long:  "Runs the note through the extraction engine and prints the resulting draft. With --file, processes one note per line. With --save, persists each draft as a record.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		texts, err := collectInputs(args)
		if err != nil {
			return err
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}

		s, err := loadSchema()
		if err != nil {
			return err
		}

		var st store.Store
		if parseSave {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		if len(texts) == 1 {
			draft, err := eng.Parse(ctx, texts[0], s)
			if err != nil {
				return err
			}
			return emitDraft(ctx, st, draft)
		}

		drafts := eng.ParseAll(ctx, texts, s)
		for i, draft := range drafts {
			if draft == nil {
				fmt.Fprintf(os.Stderr, "line %d: extraction failed\n", i+1)
				continue
			}
			if err := emitDraft(ctx, st, draft); err != nil {
				return err
			}
		}
		return nil
	},
}

func collectInputs(args []string) ([]string, error) {
	if parseFile == "" {
		if len(args) == 0 || args[0] == "" {
			return nil, eris.New("provide note text or --file")
		}
		return []string{args[0]}, nil
	}

	f, err := os.Open(parseFile)
	if err != nil {
		return nil, eris.Wrap(err, "open input file")
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		texts = append(texts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read input file")
	}
	if len(texts) == 0 {
		return nil, eris.New("input file contains no notes")
	}
	return texts, nil
}

func emitDraft(ctx context.Context, st store.Store, draft *model.Draft) error {
	if parseJSON {
		if err := json.NewEncoder(os.Stdout).Encode(draft); err != nil {
			return eris.Wrap(err, "encode draft")
		}
	} else {
		formatDraft(os.Stdout, draft)
	}

	if st == nil {
		return nil
	}

	recordedAt, err := parseWhen(draft.SuggestedDate)
	if err != nil {
		zap.L().Warn("ignoring unparseable suggested date",
			zap.String("suggested_date", draft.SuggestedDate))
		recordedAt = time.Time{}
	}

	rec, err := st.CreateRecord(ctx, draft.RecordType, draft.Details(), recordedAt)
	if err != nil {
		return err
	}
	fmt.Printf("saved record %s\n", rec.ID)
	return nil
}

func formatDraft(out io.Writer, draft *model.Draft) {
	fmt.Fprintf(out, "record_type: %s (%s)\n", draft.RecordType, draft.RecordType.Label())
	if draft.SuggestedDate != "" {
		fmt.Fprintf(out, "suggested_date: %s\n", draft.SuggestedDate)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE\tSOURCE")
	for _, f := range draft.Fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.Key, value, f.Provenance)
	}
	_ = w.Flush()
}

func init() {
	parseCmd.Flags().StringVar(&parseFile, "file", "", "read notes from file, one per line")
	parseCmd.Flags().BoolVar(&parseSave, "save", false, "persist extracted drafts as records")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print drafts as JSON")
	rootCmd.AddCommand(parseCmd)
}

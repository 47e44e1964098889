// Package export renders care records as CSV or XLSX tables and can
// push the result to an FTP drop directory for facility systems that
// still ingest files that way.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/kaigo-ai/carelog/internal/model"
)

// utf8BOM makes Excel open the CSV as UTF-8 instead of Shift_JIS.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cellTimeLayout is the timestamp format used in exported rows.
const cellTimeLayout = "2006/01/02 15:04"

// columns computes the export header: fixed columns first, then every
// field key in schema order (deduped across types, first occurrence
// wins), then any extra keys the records carry that no schema lists.
func columns(records []model.CareRecord, schema model.Schema) (keys []string, labels []string) {
	seen := make(map[string]bool)

	for _, t := range model.RecordTypes() {
		for _, f := range schema.Fields(t) {
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			keys = append(keys, f.Key)
			labels = append(labels, f.Label)
		}
	}
	// Schema types beyond the built-ins.
	for t, fields := range schema {
		if t.Valid() {
			continue
		}
		for _, f := range fields {
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			keys = append(keys, f.Key)
			labels = append(labels, f.Label)
		}
	}
	// Extras present in data but absent from every schema.
	for _, r := range records {
		for k := range r.Details {
			if seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
			labels = append(labels, k)
		}
	}
	return keys, labels
}

func header(labels []string) []string {
	return append([]string{"ID", "記録日時", "種類", "種類コード"}, labels...)
}

func row(r model.CareRecord, keys []string) []string {
	cells := []string{
		r.ID,
		r.RecordedAt.Local().Format(cellTimeLayout),
		r.RecordType.Label(),
		string(r.RecordType),
	}
	for _, k := range keys {
		cells = append(cells, r.Details[k])
	}
	return cells
}

// WriteCSV writes records as UTF-8 CSV with a BOM for Excel compatibility.
func WriteCSV(w io.Writer, records []model.CareRecord, schema model.Schema) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return eris.Wrap(err, "export: write bom")
	}

	keys, labels := columns(records, schema)

	cw := csv.NewWriter(w)
	if err := cw.Write(header(labels)); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range records {
		if err := cw.Write(row(r, keys)); err != nil {
			return eris.Wrapf(err, "export: write record %s", r.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes records as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, records []model.CareRecord, schema model.Schema) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("care_records")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	keys, labels := columns(records, schema)

	hr := sheet.AddRow()
	for _, cell := range header(labels) {
		hr.AddCell().SetString(cell)
	}
	for _, r := range records {
		xr := sheet.AddRow()
		for _, cell := range row(r, keys) {
			xr.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}

// Filename returns a timestamped export file name, e.g.
// care_records_20240131_154502.csv.
func Filename(ext string, now time.Time) string {
	return "care_records_" + now.Format("20060102_150405") + "." + ext
}

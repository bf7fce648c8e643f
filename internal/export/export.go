// Package export writes the catalog keyword report to a file. The format is
// picked from the output extension (CSV, JSON or Parquet).
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/phototools/autotag/internal/catalog"
)

// Write stores the report at outPath in the format implied by its extension.
func Write(rows []catalog.ReportRow, outPath string) error {
	ext := strings.ToLower(filepath.Ext(outPath))

	var err error
	switch ext {
	case ".csv":
		err = writeCSV(rows, outPath)
	case ".json":
		err = writeJSON(rows, outPath)
	case ".parquet":
		err = writeParquet(rows, outPath)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: .csv, .json, .parquet)", ext)
	}
	if err != nil {
		return err
	}

	slog.Info("Report exported", "path", outPath, "rows", len(rows), "format", strings.TrimPrefix(ext, "."))
	return nil
}

func writeCSV(rows []catalog.ReportRow, outPath string) error {
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"photo_id", "path", "filename", "keywords", "capture_time", "rating"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.PhotoID, 10),
			r.Path,
			r.FileName,
			strings.Join(r.Keywords, "; "),
			r.CaptureTime,
			strconv.FormatInt(r.Rating, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(rows []catalog.ReportRow, outPath string) error {
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeParquet(rows []catalog.ReportRow, outPath string) error {
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := parquet.NewGenericWriter[catalog.ReportRow](file)
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Package exporter renders persisted test records as CSV for operator
// download, reusing the record store's existing query path rather than a
// separate read mechanism.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ldpj/backend/internal/store"
)

var header = []string{
	"id", "batch_id", "cavity_id", "timestamp", "label", "probability",
	"confidence", "model_version", "duration_s", "point_count", "created_at",
}

// WriteCSV queries recorder with filters and streams the matching summary
// rows to w as CSV, header first.
func WriteCSV(w io.Writer, recorder *store.Store, filters store.Filters) error {
	rows, err := recorder.QueryRecords(filters)
	if err != nil {
		return fmt.Errorf("exporter: querying records: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("exporter: writing header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.BatchID,
			strconv.Itoa(r.CavityID),
			r.Timestamp,
			strconv.Itoa(r.Label),
			strconv.FormatFloat(r.Probability, 'f', 6, 64),
			strconv.FormatFloat(r.Confidence, 'f', 6, 64),
			r.ModelVersion,
			strconv.FormatFloat(r.DurationS, 'f', 3, 64),
			strconv.Itoa(r.PointCount),
			r.CreatedAt,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("exporter: writing record %d: %w", r.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.LogRecord(Record{
		BatchID:      "batch-1",
		CavityID:     3,
		Timestamp:    NowLocalISO8601(),
		Pressures:    []float64{100, 200, 300},
		Features:     map[string]float64{"max": 300, "min": 100},
		Label:        1,
		Probability:  0.95,
		Confidence:   0.95,
		ModelVersion: "v1",
		PointCount:   3,
	})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id to be 1, got %d", id)
	}

	count, err := s.CountRecords()
	if err != nil || count != 1 {
		t.Fatalf("expected count 1, got %d err=%v", count, err)
	}

	detail, err := s.QueryRecordDetail(id)
	if err != nil {
		t.Fatalf("unexpected detail error: %v", err)
	}
	if detail.CavityID != 3 {
		t.Fatalf("expected cavity_id 3 preserved, got %d", detail.CavityID)
	}
	if _, ok := detail.Features["max"]; !ok {
		t.Fatalf("expected features JSON to contain provided keys, got %+v", detail.Features)
	}
}

func TestStoreRecordIDsStrictlyIncreasing(t *testing.T) {
	s := openTestStore(t)

	var lastID int64
	for i := 0; i < 5; i++ {
		id, err := s.LogRecord(Record{
			CavityID:  i,
			Timestamp: NowLocalISO8601(),
			Pressures: []float64{1, 2},
			Features:  map[string]float64{},
		})
		if err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
		if id <= lastID {
			t.Fatalf("expected strictly increasing ids, got %d after %d", id, lastID)
		}
		lastID = id
	}
}

func TestQueryRecordsFiltersByCavityAndLabel(t *testing.T) {
	s := openTestStore(t)

	for i, label := range []int{0, 1, 0, 1} {
		_, err := s.LogRecord(Record{
			CavityID:  i % 2,
			Timestamp: NowLocalISO8601(),
			Pressures: []float64{1, 2},
			Features:  map[string]float64{},
			Label:     label,
		})
		if err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	cavity := 0
	label := 0
	rows, err := s.QueryRecords(Filters{CavityID: &cavity, Label: &label, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	for _, r := range rows {
		if r.CavityID != 0 || r.Label != 0 {
			t.Fatalf("filter leaked unmatched row: %+v", r)
		}
	}
}

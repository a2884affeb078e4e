package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ldpj/backend/internal/store"
)

type recordsResponse struct {
	Count   int             `json:"count"`
	Records []store.Summary `json:"records"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := store.Filters{
		StartTime: q.Get("start_time"),
		EndTime:   q.Get("end_time"),
		Limit:     atoiOrZero(q.Get("limit")),
		Offset:    atoiOrZero(q.Get("offset")),
	}
	if v := q.Get("cavity_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.CavityID = &n
		}
	}
	if v := q.Get("label"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Label = &n
		}
	}

	records, err := s.recorder.QueryRecords(filters)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	resp := recordsResponse{Count: len(records), Records: records}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}

	detail, err := s.recorder.QueryRecordDetail(id)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type statusResponse struct {
	State       string               `json:"state"`
	Diagnostics pipelineDiagnostics  `json:"diagnostics"`
	RecordCount int64                `json:"record_count"`
}

// pipelineDiagnostics mirrors pipeline.Diagnostics for JSON stability
// independent of the pipeline package's internal field order.
type pipelineDiagnostics struct {
	Cabins        interface{} `json:"cabins"`
	BufferLength  int         `json:"buffer_length"`
	Counters      interface{} `json:"counters"`
	ModelLoaded   bool        `json:"model_loaded"`
	ModelVersion  string      `json:"model_version"`
	Paused        bool        `json:"paused"`
	WatchdogOn    bool        `json:"watchdog_on"`
	LastWatermark float64     `json:"last_watermark"`
}

const statusCacheKey = "status"

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(statusCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	state := "OK"
	if s.checker != nil {
		report := s.checker.LastReport()
		for _, probe := range report.Probes {
			if !probe.OK {
				state = "DEGRADED"
				break
			}
		}
	}

	var diag pipelineDiagnostics
	if s.loop != nil {
		d := s.loop.GetDiagnostics()
		diag = pipelineDiagnostics{
			Cabins:        d.Cabins,
			BufferLength:  d.BufferLength,
			Counters:      d.Counters,
			ModelLoaded:   d.ModelLoaded,
			ModelVersion:  d.ModelVersion,
			Paused:        d.Paused,
			WatchdogOn:    d.WatchdogOn,
			LastWatermark: d.LastWatermark,
		}
	}

	count, _ := s.recorder.CountRecords()
	resp := statusResponse{State: state, Diagnostics: diag, RecordCount: count}
	s.cache.SetDefault(statusCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

const healthCacheKey = "health"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		http.Error(w, "health checker not wired", http.StatusServiceUnavailable)
		return
	}
	if cached, ok := s.cache.Get(healthCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	report := s.checker.LastReport()
	s.cache.SetDefault(healthCacheKey, report)
	writeJSON(w, http.StatusOK, report)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

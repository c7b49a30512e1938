package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Service          string `json:"service"`
	Status           string `json:"status"`
	LastExecution    string `json:"last_execution,omitempty"`
	RecordsProcessed int64  `json:"records_processed"`
	Error            string `json:"error,omitempty"`
}

const serviceName = "emendas-etl"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	run, ok, err := LatestRun(r.Context(), s.db)
	if err != nil {
		s.logger.Error("health: reading latest run failed", slog.String("error", err.Error()))
	}

	resp := healthResponse{
		Service:          serviceName,
		Status:           Verdict(run, ok, time.Now()),
		RecordsProcessed: run.RecordsInserted + run.RecordsUpdated,
		Error:            run.ErrorMessage,
	}

	if ok {
		resp.LastExecution = run.FinishedAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("health: encoding response failed", slog.String("error", err.Error()))
	}
}

// readyResponse is the JSON body of GET /ready.
type readyResponse struct {
	Ready bool `json:"ready"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(readyResponse{Ready: true})
}

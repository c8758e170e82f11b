package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/coinfeed/internal/model"
	"github.com/rickgao/coinfeed/internal/query"
	"github.com/rickgao/coinfeed/internal/version"
)

const errNoData = "Data not available yet, please try again later."

type errorResponse struct {
	Error string `json:"error"`
}

type cryptosResponse struct {
	Total       int                `json:"total"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	TotalPages  int                `json:"totalPages"`
	Data        []model.CoinRecord `json:"data"`
	LastUpdated string             `json:"lastUpdated"`
}

// handleCryptos serves one filtered, sorted page of the current snapshot.
func (s *Server) handleCryptos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	snap, ok := s.snapshots.Read()
	if !ok {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errNoData})
		s.metrics.ObserveQuery(strconv.Itoa(http.StatusServiceUnavailable), time.Since(start))
		return
	}

	res := s.engine.Run(snap, query.ParseParams(r.URL.Query()))

	s.writeJSON(w, http.StatusOK, cryptosResponse{
		Total:       res.Total,
		Page:        res.Page,
		Limit:       res.Limit,
		TotalPages:  res.TotalPages(),
		Data:        res.Items,
		LastUpdated: snap.LastUpdated(),
	})
	s.metrics.ObserveQuery(strconv.Itoa(http.StatusOK), time.Since(start))
}

type healthResponse struct {
	Status      string           `json:"status"`
	Build       version.Info     `json:"build"`
	Subscribers int              `json:"subscribers"`
	Snapshot    *snapshotHealth  `json:"snapshot,omitempty"`
	Scheduler   *schedulerHealth `json:"scheduler,omitempty"`
}

type snapshotHealth struct {
	Records     int     `json:"records"`
	LastUpdated string  `json:"lastUpdated"`
	AgeSeconds  float64 `json:"ageSeconds"`
	Publishes   uint64  `json:"publishes"`
}

type schedulerHealth struct {
	State       string `json:"state"`
	LastTrigger string `json:"lastTrigger,omitempty"`
	LastSweepAt string `json:"lastSweepAt,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// handleHealth reports "starting" with 503 until the first snapshot, then
// "healthy", or "degraded" while the latest sweep has failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:      "healthy",
		Build:       version.Get(),
		Subscribers: s.hub.Len(),
	}

	snap, ok := s.snapshots.Read()
	if ok {
		age, _ := s.snapshots.Age(time.Now())
		health.Snapshot = &snapshotHealth{
			Records:     snap.Len(),
			LastUpdated: snap.LastUpdated(),
			AgeSeconds:  age.Seconds(),
			Publishes:   s.snapshots.Version(),
		}
	} else {
		health.Status = "starting"
	}

	if s.scheduler != nil {
		sh := &schedulerHealth{State: s.scheduler.State().String()}
		if last, ok := s.scheduler.LastSweep(); ok {
			sh.LastTrigger = last.Trigger
			sh.LastSweepAt = model.FormatTime(last.At)
			if last.Err != nil {
				sh.LastError = last.Err.Error()
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
			}
		}
		health.Scheduler = sh
	}

	code := http.StatusOK
	if health.Status == "starting" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, health)
}

// handleRefresh starts an out-of-band sweep.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.scheduler.Refresh() {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "a sweep is already in progress"})
		return
	}
	s.logger.Info("manual refresh requested", "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "err", err)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"launch-dashboard/decision/aggregate"
	"launch-dashboard/decision/render"
)

// SiteOption is one entry of the site dropdown.
type SiteOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DatasetResponse summarises the loaded dataset.
type DatasetResponse struct {
	DatasetInfo
	RecordCount int        `json:"record_count"`
	Sites       []string   `json:"sites"`
	Payload     [2]float64 `json:"payload_bounds"`
	Hash        string     `json:"hash"`
}

func (s *Server) siteOptions() []SiteOption {
	sites := s.ds.Sites()
	opts := make([]SiteOption, 0, len(sites)+1)
	opts = append(opts, SiteOption{Label: "All Sites", Value: aggregate.AllSites})
	for _, site := range sites {
		opts = append(opts, SiteOption{Label: site, Value: site})
	}
	return opts
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.siteOptions())
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	lo, hi := s.ds.PayloadBounds()
	s.jsonResponse(w, http.StatusOK, DatasetResponse{
		DatasetInfo: s.info,
		RecordCount: s.ds.Len(),
		Sites:       s.ds.Sites(),
		Payload:     [2]float64{lo, hi},
		Hash:        s.ds.Hash(),
	})
}

func (s *Server) handlePie(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, aggregate.SummarizeBySite(s.ds, siteParam(r)))
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	payload, err := s.payloadParam(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, aggregate.CorrelatePayloadOutcome(s.ds, siteParam(r), payload))
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	// An omitted payload_range keeps the full dataset range.
	sel := aggregate.Selection{Payload: s.fullRange()}
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	sel.Site = normalizeSite(sel.Site)
	sel.Payload = s.clamp(sel.Payload)

	s.jsonResponse(w, http.StatusOK, aggregate.HandleSelectionChanged(s.ds, sel))
}

func (s *Server) handlePieImage(format render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeChart(w, aggregate.SummarizeBySite(s.ds, siteParam(r)), format)
	}
}

func (s *Server) handleScatterImage(format render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := s.payloadParam(r)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeChart(w, aggregate.CorrelatePayloadOutcome(s.ds, siteParam(r), payload), format)
	}
}

func (s *Server) writeChart(w http.ResponseWriter, desc aggregate.ChartDescriptor, format render.Format) {
	opts := render.Options{Width: s.dashboard.Chart.Width, Height: s.dashboard.Chart.Height}
	out, err := render.Bytes(desc, format, opts)
	if errors.Is(err, render.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("kind", string(desc.Kind)).Msg("Failed to render chart")
		s.jsonError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	s.metrics.chartsRendered.WithLabelValues(string(desc.Kind), string(format)).Inc()

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// =============================================================================
// PARAMETERS
// =============================================================================

// siteParam reads ?site=, treating a missing value as every site.
func siteParam(r *http.Request) string {
	return normalizeSite(r.URL.Query().Get("site"))
}

func normalizeSite(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return aggregate.AllSites
	}
	return site
}

// payloadParam reads ?low= and ?high=. A missing bound defaults to the
// matching dataset bound.
func (s *Server) payloadParam(r *http.Request) (aggregate.Range, error) {
	payload := s.fullRange()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"low", &payload.Low},
		{"high", &payload.High},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return aggregate.Range{}, fmt.Errorf("%s must be a finite number, got %q", p.name, raw)
		}
		*p.dst = v
	}
	return s.clamp(payload), nil
}

// fullRange is the payload range covering the whole dataset.
func (s *Server) fullRange() aggregate.Range {
	lo, hi := s.ds.PayloadBounds()
	return aggregate.Range{Low: lo, High: hi}
}

// clamp narrows a requested range to the slider extent.
func (s *Server) clamp(r aggregate.Range) aggregate.Range {
	lo, hi := s.sliderBounds()
	return r.Clamp(lo, hi)
}

// sliderBounds is the configured slider extent widened to cover the dataset.
func (s *Server) sliderBounds() (float64, float64) {
	lo, hi := s.ds.PayloadBounds()
	return math.Min(s.dashboard.Slider.Min, lo), math.Max(s.dashboard.Slider.Max, hi)
}

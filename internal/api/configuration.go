package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
)

// WhitelistResponse carries the regular-expression patterns.
type WhitelistResponse struct {
	Patterns []string `json:"patterns"`
}

// DatapointsResponse carries the exact datapoint selection.
type DatapointsResponse struct {
	Addresses []string `json:"addresses"`
}

// handleGetConfig returns the current configuration with secrets blanked.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cur := s.snapshot()

	// Copy so redaction never touches the live snapshot.
	redacted := *cur
	redacted.InfluxDB.Token = ""
	redacted.MQTT.Auth.Password = ""

	writeJSON(w, http.StatusOK, redacted)
}

// handlePutConfig replaces the configuration document.
//
// The body is decoded over a copy of the current configuration, so partial
// documents only touch the sections they mention. Blank secrets keep their
// stored values, matching the redaction on GET.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	cur := s.snapshot()
	next := *cur

	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if next.InfluxDB.Token == "" {
		next.InfluxDB.Token = cur.InfluxDB.Token
	}
	if next.MQTT.Auth.Password == "" {
		next.MQTT.Auth.Password = cur.MQTT.Auth.Password
	}

	if err := s.applyConfig(r.Context(), &next); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// handleGetWhitelist returns the whitelist patterns.
func (s *Server) handleGetWhitelist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, WhitelistResponse{Patterns: s.snapshot().Whitelist})
}

// handlePutWhitelist replaces the whitelist patterns.
//
// Patterns are compiled up front so a typo is rejected here instead of being
// silently dropped by the filter at reload time.
func (s *Server) handlePutWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	for _, pattern := range req.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			writeValidationError(w, "invalid pattern "+pattern+": "+err.Error())
			return
		}
	}

	next := *s.snapshot()
	next.Whitelist = req.Patterns

	if err := s.applyConfig(r.Context(), &next); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, WhitelistResponse{Patterns: next.Whitelist})
}

// handleGetDatapoints returns the exact datapoint selection.
func (s *Server) handleGetDatapoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DatapointsResponse{Addresses: s.snapshot().Datapoints})
}

// handlePutDatapoints replaces the exact datapoint selection.
func (s *Server) handlePutDatapoints(w http.ResponseWriter, r *http.Request) {
	var req DatapointsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	next := *s.snapshot()
	next.Datapoints = req.Addresses

	if err := s.applyConfig(r.Context(), &next); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DatapointsResponse{Addresses: next.Datapoints})
}

// handleTestDatabase validates database connection settings without
// touching the live connection. The settings UI calls it before saving.
func (s *Server) handleTestDatabase(w http.ResponseWriter, r *http.Request) {
	if s.tester == nil {
		writeUnavailable(w, "database gateway not available")
		return
	}

	var req config.InfluxDBConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !req.Configured() {
		writeValidationError(w, "host is required")
		return
	}
	// Blank token means test with the stored credentials.
	if req.Token == "" {
		req.Token = s.snapshot().InfluxDB.Token
	}

	if err := s.tester.TestConnection(r.Context(), req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

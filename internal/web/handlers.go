package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// gainLimitDB mirrors the configuration bound on the input gain control.
const gainLimitDB = 60.0

// spectrumPushInterval is the cadence of live spectrum frames, fast enough
// for a fluid waterfall without saturating slow clients.
const spectrumPushInterval = 100 * time.Millisecond

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealthz is the liveness probe. A process that can serve HTTP is
// alive.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz evaluates every registered checker and reports 200 only when
// all pass.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	allOK := true
	for _, c := range s.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !allOK {
		status = http.StatusServiceUnavailable
		overall = "fail"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// handleStatus serves the scalar telemetry snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Telemetry().Snapshot())
}

// spectrumPayload is the JSON shape of one spectrum frame.
type spectrumPayload struct {
	Bins int       `json:"bins"`
	DB   []float32 `json:"db"`
}

func (s *Server) spectrum() spectrumPayload {
	tel := s.ctl.Telemetry()
	return spectrumPayload{Bins: tel.SpectrumBins(), DB: tel.Spectrum()}
}

// handleSpectrum serves a single spectrum snapshot.
func (s *Server) handleSpectrum(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.spectrum())
}

// handleSpectrumLive upgrades to a websocket and pushes spectrum frames at a
// fixed cadence until the client goes away.
func (s *Server) handleSpectrumLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	ticker := time.NewTicker(spectrumPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, s.spectrum()); err != nil {
				return
			}
		}
	}
}

// gainRequest is the body of POST /api/gain. The API deals in dB; the
// receiver stores the linear multiplier.
type gainRequest struct {
	GainDB float64 `json:"gain_db"`
}

func (s *Server) handleGain(w http.ResponseWriter, r *http.Request) {
	var req gainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.GainDB < -gainLimitDB || req.GainDB > gainLimitDB {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("gain_db %v is outside ±%v dB", req.GainDB, gainLimitDB))
		return
	}
	s.ctl.SetGainDB(req.GainDB)
	writeJSON(w, http.StatusOK, s.ctl.Telemetry().Snapshot())
}

// recordingStartRequest optionally names the recording file. Names carrying
// path separators are rejected; recordings always land in the configured
// directory.
type recordingStartRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	var req recordingStartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	name := req.Filename
	if name == "" {
		name = "capture-" + time.Now().UTC().Format("20060102-150405") + ".raw"
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		writeError(w, http.StatusUnprocessableEntity, "filename must not contain path separators")
		return
	}

	path := filepath.Join(s.recDir, name)
	if err := s.ctl.StartRecording(path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, _ *http.Request) {
	s.ctl.StopRecording()
	writeJSON(w, http.StatusOK, s.ctl.Telemetry().Snapshot())
}

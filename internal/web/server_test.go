package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kv9n/radaemon/internal/observe"
	"github.com/kv9n/radaemon/internal/receiver"
)

// stubController records control calls and exposes a real telemetry surface.
type stubController struct {
	tel        *receiver.Telemetry
	gainDB     []float64
	startPaths []string
	startErr   error
	stopCalls  int
}

func newStubController() *stubController {
	return &stubController{tel: receiver.NewTelemetry(8)}
}

func (c *stubController) Telemetry() *receiver.Telemetry { return c.tel }
func (c *stubController) SetGainDB(db float64)           { c.gainDB = append(c.gainDB, db) }
func (c *stubController) StartRecording(path string) error {
	c.startPaths = append(c.startPaths, path)
	return c.startErr
}
func (c *stubController) StopRecording() { c.stopCalls++ }

var _ Controller = (*stubController)(nil)

func newTestServer(t *testing.T, ctl Controller, opts ...Option) *httptest.Server {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	opts = append(opts, WithMetrics(met))
	ts := httptest.NewServer(New("127.0.0.1:0", ctl, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, newStubController())
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body status: got %q", body["status"])
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	ts := newTestServer(t, newStubController(), WithCheckers(
		Checker{Name: "good", Check: func(context.Context) error { return nil }},
		Checker{Name: "bad", Check: func(context.Context) error { return errors.New("down") }},
	))
	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "fail" {
		t.Errorf("overall: got %q, want fail", body.Status)
	}
	if body.Checks["good"] != "ok" || !strings.HasPrefix(body.Checks["bad"], "fail:") {
		t.Errorf("checks: %v", body.Checks)
	}
}

func TestStatus(t *testing.T) {
	ctl := newStubController()
	ts := newTestServer(t, ctl)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var snap receiver.Snapshot
	decodeBody(t, resp, &snap)
	if snap.Running || snap.Synced {
		t.Error("idle telemetry reports activity")
	}
	if snap.GainDB != 0 {
		t.Errorf("gain_db at unity gain: got %v, want 0", snap.GainDB)
	}
}

func TestGain_Roundtrip(t *testing.T) {
	ctl := newStubController()
	ts := newTestServer(t, ctl)

	resp, err := http.Post(ts.URL+"/api/gain", "application/json",
		bytes.NewBufferString(`{"gain_db": -3.5}`))
	if err != nil {
		t.Fatalf("POST /api/gain: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if len(ctl.gainDB) != 1 || ctl.gainDB[0] != -3.5 {
		t.Errorf("recorded gains: %v", ctl.gainDB)
	}
}

func TestGain_Rejections(t *testing.T) {
	ctl := newStubController()
	ts := newTestServer(t, ctl)

	for _, tc := range []struct {
		name string
		body string
		want int
	}{
		{"out of range", `{"gain_db": 100}`, http.StatusUnprocessableEntity},
		{"bad json", `{"gain_db": `, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/gain", "application/json",
				bytes.NewBufferString(tc.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
	if len(ctl.gainDB) != 0 {
		t.Errorf("rejected requests reached the controller: %v", ctl.gainDB)
	}
}

func TestSpectrumSnapshot(t *testing.T) {
	ts := newTestServer(t, newStubController())
	resp, err := http.Get(ts.URL + "/api/spectrum")
	if err != nil {
		t.Fatalf("GET /api/spectrum: %v", err)
	}
	var body spectrumPayload
	decodeBody(t, resp, &body)
	if body.Bins != 8 || len(body.DB) != 8 {
		t.Errorf("payload shape: bins=%d len=%d, want 8/8", body.Bins, len(body.DB))
	}
}

func TestSpectrumLive_PushesFrames(t *testing.T) {
	ts := newTestServer(t, newStubController())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/spectrum/live"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var frame spectrumPayload
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Bins != 8 || len(frame.DB) != 8 {
		t.Errorf("frame shape: bins=%d len=%d, want 8/8", frame.Bins, len(frame.DB))
	}
}

func TestRecordingStart_DefaultFilename(t *testing.T) {
	ctl := newStubController()
	dir := t.TempDir()
	ts := newTestServer(t, ctl, WithRecordingDir(dir))

	resp, err := http.Post(ts.URL+"/api/recording/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if len(ctl.startPaths) != 1 {
		t.Fatalf("start calls: got %d, want 1", len(ctl.startPaths))
	}
	if !strings.HasPrefix(ctl.startPaths[0], dir) {
		t.Errorf("recording path %q outside dir %q", ctl.startPaths[0], dir)
	}
	if !strings.HasSuffix(ctl.startPaths[0], ".raw") {
		t.Errorf("recording path %q missing .raw suffix", ctl.startPaths[0])
	}
}

func TestRecordingStart_RejectsPathTraversal(t *testing.T) {
	ctl := newStubController()
	ts := newTestServer(t, ctl, WithRecordingDir(t.TempDir()))

	resp, err := http.Post(ts.URL+"/api/recording/start", "application/json",
		bytes.NewBufferString(`{"filename": "../../etc/passwd"}`))
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", resp.StatusCode)
	}
	if len(ctl.startPaths) != 0 {
		t.Errorf("traversal reached the controller: %v", ctl.startPaths)
	}
}

func TestRecordingStop(t *testing.T) {
	ctl := newStubController()
	ts := newTestServer(t, ctl)

	resp, err := http.Post(ts.URL+"/api/recording/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	resp.Body.Close()
	if ctl.stopCalls != 1 {
		t.Errorf("stop calls: got %d, want 1", ctl.stopCalls)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, newStubController())
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

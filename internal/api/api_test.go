package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/micro-nova/gl846-go/internal/api"
	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/auth"
	"github.com/micro-nova/gl846-go/internal/config"
	"github.com/micro-nova/gl846-go/internal/controller"
	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/events"
	"github.com/micro-nova/gl846-go/internal/gl846"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/identity"
	"github.com/micro-nova/gl846-go/internal/models"
)

// newTestServer spins up a full router over a simulated scanner.
func newTestServer(t *testing.T) (*httptest.Server, *hardware.Mock) {
	t.Helper()

	b, err := descriptor.Lookup("canon-image-formula-101")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	hw := hardware.NewMock()
	dev := asic.NewDevice(b, hw, gl846.New())

	store := config.NewMemStore()
	bus := events.NewBus()
	info := identity.Info{Hostname: "scanner", Version: "0.1.0"}

	ctrl, err := controller.New(dev, store, bus, info)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}

	authSvc, err := auth.NewService("") // open mode, no keys file
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	router := api.NewRouter(ctrl, authSvc, bus, info, fakeBackups{})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		authSvc.Close()
	})
	return srv, hw
}

type fakeBackups struct{}

func (fakeBackups) RunBackupNow() (string, error) { return "/backups/gl846d-config-2026-01-01.tar.gz", nil }
func (fakeBackups) ListBackups() ([]string, error) {
	return []string{"/backups/gl846d-config-2026-01-01.tar.gz"}, nil
}

// newBootedServer is newTestServer after a cold boot.
func newBootedServer(t *testing.T) (*httptest.Server, *hardware.Mock) {
	t.Helper()
	srv, hw := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/boot", `{"cold":true}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	return srv, hw
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// requireCode checks the status and error code of a failed request.
func requireCode(t *testing.T, resp *http.Response, status int, code models.ErrorCode) {
	t.Helper()
	requireStatus(t, resp, status)
	var e models.AppError
	decodeJSON(t, resp, &e)
	if e.Code != code {
		t.Errorf("code = %q, want %q", e.Code, code)
	}
}

func TestGetStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/status", "")
	requireStatus(t, resp, http.StatusOK)
	var st models.DeviceStatus
	decodeJSON(t, resp, &st)

	if st.Booted {
		t.Error("device should not be booted yet")
	}
	if st.Model != "canon-image-formula-101" || st.ASIC != "gl846" {
		t.Errorf("model/asic = %q/%q", st.Model, st.ASIC)
	}
}

func TestGetInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/info", "")
	requireStatus(t, resp, http.StatusOK)
	var info struct {
		Hostname string   `json:"hostname"`
		Version  string   `json:"version"`
		Models   []string `json:"models"`
	}
	decodeJSON(t, resp, &info)
	if info.Hostname != "scanner" || info.Version != "0.1.0" {
		t.Errorf("info = %+v", info)
	}
	if len(info.Models) != len(descriptor.Models()) {
		t.Errorf("models = %v", info.Models)
	}
}

func TestOperationsBeforeBoot(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/home", "/api/stop", "/api/calibrate", "/api/scan/prepare"} {
		resp := do(t, srv, http.MethodPost, path, "")
		requireCode(t, resp, http.StatusConflict, models.CodeConflict)
	}
}

func TestBootAndMove(t *testing.T) {
	srv, _ := newBootedServer(t)

	resp := do(t, srv, http.MethodPost, "/api/home", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, srv, http.MethodPost, "/api/feed", `{"steps":120}`)
	requireStatus(t, resp, http.StatusOK)
	var st models.DeviceStatus
	decodeJSON(t, resp, &st)
	if !st.Booted || st.HeadPos != 120 || st.LastOp != "feed" {
		t.Errorf("status = booted %v head %d op %q", st.Booted, st.HeadPos, st.LastOp)
	}

	resp = do(t, srv, http.MethodPost, "/api/feed", `{"steps":0}`)
	requireCode(t, resp, http.StatusBadRequest, models.CodeInvalidArgument)
}

func TestHomeTimeout(t *testing.T) {
	srv, hw := newBootedServer(t)
	hw.SetHome(false)
	hw.SetNeverHome(true)

	resp := do(t, srv, http.MethodPost, "/api/home", `{"wait":true}`)
	requireCode(t, resp, http.StatusGatewayTimeout, models.CodeHardwareTimeout)
}

func TestBadJSON(t *testing.T) {
	srv, _ := newBootedServer(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/feed", `{"steps":`},
		{http.MethodPost, "/api/feed", `{"stride":3}`},
		{http.MethodPatch, "/api/settings", `[]`},
		{http.MethodPut, "/api/registers/0x01", `{"value":"high"}`},
	}
	for _, tt := range tests {
		resp := do(t, srv, tt.method, tt.path, tt.body)
		requireCode(t, resp, http.StatusBadRequest, models.CodeBadRequest)
	}
}

func TestSettings(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPatch, "/api/settings", `{"mode":"gray","xres":600}`)
	requireStatus(t, resp, http.StatusOK)
	var s models.Settings
	decodeJSON(t, resp, &s)
	if s.ScanMode != models.ModeGray || s.XRes != 600 {
		t.Errorf("settings = %+v", s)
	}

	resp = do(t, srv, http.MethodGet, "/api/settings", "")
	requireStatus(t, resp, http.StatusOK)
	var got models.Settings
	decodeJSON(t, resp, &got)
	if got != s {
		t.Errorf("GET settings = %+v, want %+v", got, s)
	}

	resp = do(t, srv, http.MethodGet, "/api/config", "")
	requireStatus(t, resp, http.StatusOK)
	var cfg models.Config
	decodeJSON(t, resp, &cfg)
	if cfg.Scan.Mode != "gray" {
		t.Errorf("config scan mode = %q, want persisted gray", cfg.Scan.Mode)
	}

	resp = do(t, srv, http.MethodPatch, "/api/settings", `{"filter":"purple"}`)
	requireCode(t, resp, http.StatusBadRequest, models.CodeInvalidArgument)
}

func TestCompile(t *testing.T) {
	srv, _ := newBootedServer(t)

	body := `{"params":{"xres":600,"yres":600,"pixels":100,"lines":100,"depth":8,"channels":1,` +
		`"scan_method":"flatbed","scan_mode":"gray","color_filter":"green"},"flags":["disable_gamma"]}`
	resp := do(t, srv, http.MethodPost, "/api/compile", body)
	requireStatus(t, resp, http.StatusOK)
	var out struct {
		Session   models.SessionSummary  `json:"session"`
		Registers []models.RegisterValue `json:"registers"`
	}
	decodeJSON(t, resp, &out)
	if out.Session.HWDPI != 600 || len(out.Registers) == 0 {
		t.Errorf("compile = %+v", out.Session)
	}
}

func TestRegisters(t *testing.T) {
	srv, hw := newBootedServer(t)

	resp := do(t, srv, http.MethodGet, "/api/registers", "")
	requireStatus(t, resp, http.StatusOK)
	var regs []models.RegisterValue
	decodeJSON(t, resp, &regs)
	if len(regs) == 0 {
		t.Fatal("empty register image")
	}

	resp = do(t, srv, http.MethodPut, "/api/registers/0x6c", `{"value":171}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if hw.GetReg(hardware.Reg6C) != 171 {
		t.Errorf("Reg6C = %d, want 171", hw.GetReg(hardware.Reg6C))
	}

	resp = do(t, srv, http.MethodGet, "/api/registers/108", "")
	requireStatus(t, resp, http.StatusOK)
	var rv models.RegisterValue
	decodeJSON(t, resp, &rv)
	if rv.Addr != 0x6c || rv.Value != 171 {
		t.Errorf("register = %+v", rv)
	}

	for _, addr := range []string{"zz", "0x10000", "-1"} {
		resp = do(t, srv, http.MethodGet, "/api/registers/"+addr, "")
		requireCode(t, resp, http.StatusBadRequest, models.CodeBadRequest)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	srv, _ := newBootedServer(t)

	resp := do(t, srv, http.MethodGet, "/api/registers/snapshot", "")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/cbor" {
		t.Errorf("Content-Type = %q", ct)
	}
	snap, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/registers/snapshot", bytes.NewReader(snap))
	req.Header.Set("Content-Type", "application/cbor")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, srv, http.MethodPut, "/api/registers/snapshot", "")
	requireCode(t, resp, http.StatusBadRequest, models.CodeBadRequest)
}

func TestTraceUnsupportedWithoutRecorder(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/trace", "")
	requireCode(t, resp, http.StatusNotImplemented, models.CodeUnsupported)
	resp = do(t, srv, http.MethodDelete, "/api/trace", "")
	requireCode(t, resp, http.StatusNotImplemented, models.CodeUnsupported)
}

func TestButtons(t *testing.T) {
	srv, hw := newBootedServer(t)
	hw.SetButtons(hardware.ButtonEmail)

	resp := do(t, srv, http.MethodGet, "/api/buttons", "")
	requireStatus(t, resp, http.StatusOK)
	var b models.Buttons
	decodeJSON(t, resp, &b)
	if !b.Email || b.Scan {
		t.Errorf("buttons = %+v", b)
	}
}

func TestSelfTestAndFactoryReset(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/selftest", "")
	requireStatus(t, resp, http.StatusOK)
	var res map[string]interface{}
	decodeJSON(t, resp, &res)
	if res["ok"] != true {
		t.Errorf("selftest = %v", res)
	}

	resp = do(t, srv, http.MethodPost, "/api/factory_reset", "")
	requireStatus(t, resp, http.StatusOK)
	var st models.DeviceStatus
	decodeJSON(t, resp, &st)
	if !st.Booted {
		t.Error("factory reset should boot the device")
	}
}

func TestLoadConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	cfg := models.DefaultConfig()
	cfg.Name = "office"
	data, _ := json.Marshal(cfg)
	resp := do(t, srv, http.MethodPost, "/api/load", string(data))
	requireStatus(t, resp, http.StatusOK)
	var st models.DeviceStatus
	decodeJSON(t, resp, &st)
	if st.Name != "office" {
		t.Errorf("name = %q, want office", st.Name)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodOptions, "/api/status", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestSSESubscribe(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/subscribe?kind=operation", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	next := func() models.Event {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var ev models.Event
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					t.Fatalf("bad event %q: %v", data, err)
				}
				return ev
			}
		}
		t.Fatal("stream ended")
		return models.Event{}
	}

	if ev := next(); ev.Kind != models.EventStatus {
		t.Errorf("first event kind = %q, want status", ev.Kind)
	}

	boot := do(t, srv, http.MethodPost, "/api/boot", "")
	requireStatus(t, boot, http.StatusOK)
	boot.Body.Close()

	ev := next()
	if ev.Kind != models.EventOperation || ev.Operation != "boot" || !ev.Status.Booted {
		t.Errorf("event = %s/%s booted=%v", ev.Kind, ev.Operation, ev.Status.Booted)
	}
}

func TestBackups(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/backups", "")
	requireStatus(t, resp, http.StatusCreated)
	var created map[string]string
	decodeJSON(t, resp, &created)
	if !strings.HasSuffix(created["file"], ".tar.gz") {
		t.Errorf("created = %v", created)
	}

	resp = do(t, srv, http.MethodGet, "/api/backups", "")
	requireStatus(t, resp, http.StatusOK)
	var list map[string][]string
	decodeJSON(t, resp, &list)
	if len(list["backups"]) != 1 {
		t.Errorf("backups = %v", list)
	}
}

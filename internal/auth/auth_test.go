package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/micro-nova/gl846-go/internal/auth"
)

func writeKeysJSON(t *testing.T, dir string, keys map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(keys)
	if err != nil {
		t.Fatalf("json.Marshal keys: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keys.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile keys.json: %v", err)
	}
}

func newService(t *testing.T, dir string) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func securedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeKeysJSON(t, dir, map[string]interface{}{
		"operator": map[string]interface{}{"access_key": "secret-key-123"},
		"monitor":  map[string]interface{}{"access_key": "view-only", "read_only": true},
	})
	return dir
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(svc *auth.Service, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	svc.Middleware(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestService_OpenMode(t *testing.T) {
	svc := newService(t, t.TempDir())
	if !svc.IsOpenMode() {
		t.Error("IsOpenMode() = false, want true when no keys.json")
	}
	if svc.VerifyKey("") || svc.VerifyKey("anything") {
		t.Error("no key should verify in open mode")
	}
	if rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/feed", nil)); rec.Code != http.StatusOK {
		t.Errorf("open mode status = %d, want 200", rec.Code)
	}
}

func TestService_SecuredMode_VerifyKey(t *testing.T) {
	svc := newService(t, securedDir(t))
	if svc.IsOpenMode() {
		t.Error("IsOpenMode() = true with keys configured")
	}
	tests := []struct {
		key  string
		want bool
	}{
		{"secret-key-123", true},
		{"view-only", true},
		{"wrong", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := svc.VerifyKey(tt.key); got != tt.want {
			t.Errorf("VerifyKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMiddleware_SecuredMode(t *testing.T) {
	svc := newService(t, securedDir(t))

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"header key", http.MethodPost, "/api/feed", "secret-key-123", http.StatusOK},
		{"query key", http.MethodGet, "/api/status?api-key=secret-key-123", "", http.StatusOK},
		{"wrong key", http.MethodGet, "/api/status", "nope", http.StatusUnauthorized},
		{"no key", http.MethodGet, "/api/status", "", http.StatusUnauthorized},
		{"read-only get", http.MethodGet, "/api/status", "view-only", http.StatusOK},
		{"read-only post", http.MethodPost, "/api/home", "view-only", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := serve(svc, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "UNAUTHORIZED" {
					t.Errorf("body = %s", rec.Body.String())
				}
			}
		})
	}
}

func TestService_Reload(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)
	if !svc.IsOpenMode() {
		t.Fatal("expected open mode before keys exist")
	}

	writeKeysJSON(t, dir, map[string]interface{}{
		"operator": map[string]interface{}{"access_key": "new-key"},
	})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !svc.VerifyKey("new-key") {
		t.Error("new key not accepted after Reload")
	}

	if err := os.Remove(filepath.Join(dir, "keys.json")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload after remove: %v", err)
	}
	if !svc.IsOpenMode() {
		t.Error("removing keys.json should reopen the API")
	}
}

func TestService_WatcherPicksUpKeys(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	writeKeysJSON(t, dir, map[string]interface{}{
		"operator": map[string]interface{}{"access_key": "watched"},
	})
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if svc.VerifyKey("watched") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not reload keys.json")
}

func TestService_MissingConfigDir_NoError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	svc := newService(t, dir)
	if !svc.IsOpenMode() {
		t.Error("missing dir should mean open mode")
	}
}

func TestService_CorruptKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "keys.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.NewService(dir); err == nil {
		t.Error("corrupt keys.json should fail NewService")
	}
}

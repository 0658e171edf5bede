package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDashboard(t *testing.T) {
	rec := httptest.NewRecorder()
	Dashboard("/live")(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `location.host + "/live"`) || strings.Contains(body, "{{WS_PATH}}") {
		t.Error("websocket path not substituted")
	}
}

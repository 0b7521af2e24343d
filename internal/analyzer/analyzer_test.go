package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canlink/ecubridge/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return logger
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "P0420" {
			t.Errorf("code = %q, want P0420", body.Code)
		}
		json.NewEncoder(w).Encode(Analysis{
			Title:       "Catalyst System Efficiency Below Threshold",
			Severity:    "medium",
			Description: "The catalytic converter is underperforming.",
			Causes:      []string{"aged catalyst"},
			Fixes:       []string{"replace converter"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, testLogger(t))
	got, fromService := c.Analyze(context.Background(), "P0420")
	if !fromService {
		t.Error("Analyze reported fallback for a healthy service")
	}
	if got.Severity != "medium" || len(got.Causes) != 1 {
		t.Errorf("analysis = %+v", got)
	}
}

func TestAnalyzeDegradesNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{"slow service", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(srv.URL, 100*time.Millisecond, testLogger(t))
			got, fromService := c.Analyze(context.Background(), "P0133")
			if fromService {
				t.Error("degraded call reported service result")
			}
			// Known catalog code keeps its local one-liner.
			if got.Title != "O2 Sensor Circuit Slow Response" {
				t.Errorf("fallback title = %q", got.Title)
			}
		})
	}
}

func TestAnalyzeUnreachableService(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond, testLogger(t))
	got, fromService := c.Analyze(context.Background(), "P9999")
	if fromService {
		t.Error("unreachable service reported success")
	}
	if got.Title != "Unknown Fault" {
		t.Errorf("fallback title = %q, want Unknown Fault", got.Title)
	}
}

func TestLatestDTC(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/latest_dtc" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.Write([]byte(`{"code":"P0300"}`))
		}))
		defer srv.Close()

		c := New(srv.URL, time.Second, testLogger(t))
		code, err := c.LatestDTC(context.Background())
		if err != nil || code != "P0300" {
			t.Errorf("LatestDTC = %q, %v", code, err)
		}
	})

	t.Run("null code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":null}`))
		}))
		defer srv.Close()

		c := New(srv.URL, time.Second, testLogger(t))
		code, err := c.LatestDTC(context.Background())
		if err != nil || code != "" {
			t.Errorf("LatestDTC = %q, %v; want empty", code, err)
		}
	})
}

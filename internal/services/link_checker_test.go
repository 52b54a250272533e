package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testChecker() *LinkChecker {
	cfg := DefaultLinkCheckerConfig()
	cfg.RequestsPerSec = 1000
	cfg.Timeout = 2 * time.Second
	return NewLinkChecker(cfg)
}

func TestCheckValidURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := testChecker().Check(context.Background(), srv.URL)
	if !result.Valid {
		t.Fatalf("expected valid, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
}

func TestCheckBrokenURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := testChecker().Check(context.Background(), srv.URL)
	if result.Valid {
		t.Fatalf("expected broken, got %+v", result)
	}
	if result.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", result.StatusCode)
	}
}

func TestCheckUnreachableURL(t *testing.T) {
	result := testChecker().Check(context.Background(), "http://127.0.0.1:1")
	if result.Valid {
		t.Fatalf("expected unreachable to be invalid, got %+v", result)
	}
	if result.Error == "" {
		t.Error("expected a transport error message")
	}
}

func TestCheckFallsBackToGET(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			sawGet = true
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><head><title>Fallback Page</title></head><body></body></html>"))
		}
	}))
	defer srv.Close()

	result := testChecker().Check(context.Background(), srv.URL)
	if !sawGet {
		t.Fatal("expected GET fallback after HEAD 405")
	}
	if !result.Valid {
		t.Fatalf("expected valid after fallback, got %+v", result)
	}
	if result.Title != "Fallback Page" {
		t.Errorf("Title = %q, want %q", result.Title, "Fallback Page")
	}
}

func TestCheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/missing", srv.URL + "/b"}
	summary := testChecker().CheckAll(context.Background(), urls)

	if summary.Total != 3 || summary.Valid != 2 || summary.Broken != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// Results keep input order.
	for i, url := range urls {
		if summary.Results[i].URL != url {
			t.Errorf("result %d is %q, want %q", i, summary.Results[i].URL, url)
		}
	}
	if summary.Results[1].Valid {
		t.Error("missing path reported valid")
	}
}

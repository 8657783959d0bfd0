package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funnypdf/internal/config"
)

func catFetcherAgainst(url string) *HTTPCatFetcher {
	return NewHTTPCatFetcher(config.EngineConfig{CatURL: url, CatTimeout: 2 * time.Second})
}

func TestHTTPCatFetcher_ServesJPEG(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(placeholderJPEG())
	}))
	defer ts.Close()

	data, imgType := catFetcherAgainst(ts.URL).Fetch(context.Background())
	if imgType != "JPG" {
		t.Errorf("image type = %q, want JPG", imgType)
	}
	if len(data) == 0 {
		t.Error("empty image data")
	}
}

func TestHTTPCatFetcher_FallsBackOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no cats today", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	data, imgType := catFetcherAgainst(ts.URL).Fetch(context.Background())
	if imgType != "JPG" {
		t.Errorf("fallback type = %q, want JPG", imgType)
	}
	if len(data) == 0 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("fallback is not a JPEG placeholder")
	}
}

func TestHTTPCatFetcher_FallsBackOnUnreachableHost(t *testing.T) {
	data, imgType := catFetcherAgainst("http://127.0.0.1:1").Fetch(context.Background())
	if imgType != "JPG" || len(data) == 0 {
		t.Error("unreachable host must yield the placeholder")
	}
}

func TestHTTPCatFetcher_FallsBackOnNonImageBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>definitely not a cat</html>"))
	}))
	defer ts.Close()

	data, imgType := catFetcherAgainst(ts.URL).Fetch(context.Background())
	if imgType != "JPG" {
		t.Errorf("fallback type = %q, want JPG", imgType)
	}
	if len(data) == 0 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("non-image body must yield the placeholder")
	}
}

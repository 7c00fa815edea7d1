package ghl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

func newTestAPIClient(serverURL string) *APIClient {
	return NewAPIClient(APIConfig{
		BaseURL:        serverURL,
		LookupAttempts: 3,
		LookupBackoff:  time.Millisecond,
		Timeout:        time.Second,
	})
}

func TestAPIClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("locationId") != "loc-1" {
			t.Errorf("locationId = %s", r.URL.Query().Get("locationId"))
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization = %s", got)
		}
		if got := r.Header.Get("Version"); got != domain.DefaultAPIVersion {
			t.Errorf("Version = %s", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"name":"Listing"}` {
			t.Errorf("body = %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"prod-1"}`))
	}))
	defer server.Close()

	client := newTestAPIClient(server.URL)
	resp, err := client.Do(context.Background(), "access-1", http.MethodPost, "/products/",
		url.Values{"locationId": {"loc-1"}}, json.RawMessage(`{"name":"Listing"}`))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated || string(resp.Body) != `{"_id":"prod-1"}` {
		t.Errorf("Do() = %d %s", resp.StatusCode, resp.Body)
	}
	if resp.ContentType != "application/json" {
		t.Errorf("Do() ContentType = %s", resp.ContentType)
	}
}

func TestAPIClient_Do_PassesErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid"}`))
	}))
	defer server.Close()

	resp, err := newTestAPIClient(server.URL).Do(context.Background(), "t", http.MethodGet, "/products/x", nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Do() status = %d", resp.StatusCode)
	}
}

func TestAPIClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		content, _ := io.ReadAll(file)

		if header.Filename != "photo.png" || string(content) != "png-bytes" {
			t.Errorf("file = %s %q", header.Filename, content)
		}
		if r.FormValue("name") != "Storefront" {
			t.Errorf("name = %s", r.FormValue("name"))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"fileId":"f-1"}`))
	}))
	defer server.Close()

	resp, err := newTestAPIClient(server.URL).Upload(context.Background(), "access-1", "/medias/upload-file", &domain.MediaUpload{
		FileName:    "photo.png",
		ContentType: "image/png",
		Content:     []byte("png-bytes"),
		Name:        "Storefront",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Upload() status = %d", resp.StatusCode)
	}
}

func TestAPIClient_GetLocation_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/locations/loc-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"location":{"id":"loc-1","name":"Main St","companyId":"comp-1"}}`))
	}))
	defer server.Close()

	info, err := newTestAPIClient(server.URL).GetLocation(context.Background(), "access-1", "loc-1")
	if err != nil {
		t.Fatalf("GetLocation() error = %v", err)
	}
	if info.CompanyID != "comp-1" || info.Name != "Main St" {
		t.Errorf("GetLocation() = %+v", info)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestAPIClient_GetLocation_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestAPIClient(server.URL).GetLocation(context.Background(), "access-1", "loc-1")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("GetLocation() error = %v, want ErrServiceUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestAPIClient_GetLocation_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestAPIClient(server.URL).GetLocation(context.Background(), "access-1", "loc-1")
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("GetLocation() error = %v, want ErrNotAuthenticated", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestAPIClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL, RateLimit: 1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := client.Do(ctx, "t", http.MethodGet, "/", nil, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.Do(ctx, "t", http.MethodGet, "/", nil, nil); err == nil {
		t.Error("second call should be throttled past the deadline")
	}
}

func TestLinearBackoff(t *testing.T) {
	b := linearBackoff(time.Second)
	for i := 1; i <= 3; i++ {
		d, stop := b.Next()
		if stop {
			t.Fatal("linear backoff must not stop on its own")
		}
		if d != time.Duration(i)*time.Second {
			t.Errorf("attempt %d delay = %v, want %ds", i, d, i)
		}
	}
}

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Error("expected custom header")
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]string{"echo": in["say"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := PostJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Test": "yes"},
		map[string]string{"say": "hi"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Echo != "hi" {
		t.Errorf("expected echo hi, got %q", out.Echo)
	}
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), nil, srv.URL, nil, struct{}{}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", se.StatusCode)
	}
	if se.Message != "slow down" {
		t.Errorf("expected extracted message, got %q", se.Message)
	}
	if !strings.Contains(se.Error(), "slow down") {
		t.Errorf("error string missing message: %s", se.Error())
	}
}

func TestPostJSONPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusBadGateway)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), nil, srv.URL, nil, struct{}{}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if len(se.Message) != maxErrorBody {
		t.Errorf("expected message truncated to %d, got %d", maxErrorBody, len(se.Message))
	}
}

func TestPostJSONBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	err := PostJSON(context.Background(), nil, srv.URL, nil, struct{}{}, &out)
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Errorf("expected decode error, got %v", err)
	}
}

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luftujha/luftujha-core/internal/infrastructure/config"
)

func testUpstreamConfig(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL:        baseURL,
		Token:          "test-token",
		EntityPrefix:   "number.luftator_",
		ReconnectDelay: 1,
		RequestTimeout: 2,
	}
}

func TestListValveEntitiesFiltersPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			t.Errorf("path = %s, want /api/states", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		states := []EntityState{
			{EntityID: "number.luftator_supply_living", State: "55"},
			{EntityID: "light.kitchen", State: "on"},
			{EntityID: "number.luftator_supply_bedroom", State: "30"},
			{EntityID: "number.thermostat_offset", State: "1"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(states)
	}))
	defer srv.Close()

	client := NewClient(testUpstreamConfig(srv.URL))

	got, err := client.ListValveEntities(context.Background())
	if err != nil {
		t.Fatalf("ListValveEntities() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entity count = %d, want 2", len(got))
	}
	if got[0].EntityID != "number.luftator_supply_living" || got[1].EntityID != "number.luftator_supply_bedroom" {
		t.Errorf("entities = %v, wrong filtering", got)
	}
}

func TestListValveEntitiesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(testUpstreamConfig(srv.URL))

	_, err := client.ListValveEntities(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("ListValveEntities() error = %v, want ErrRequestFailed", err)
	}
}

func TestSetNumericValue(t *testing.T) {
	var received setValueRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/services/number/set_value" {
			t.Errorf("path = %s, want /api/services/number/set_value", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(testUpstreamConfig(srv.URL))

	if err := client.SetNumericValue(context.Background(), "number.luftator_supply_living", 65); err != nil {
		t.Fatalf("SetNumericValue() error = %v", err)
	}
	if received.EntityID != "number.luftator_supply_living" || received.Value != 65 {
		t.Errorf("request body = %+v, want entity/value echoed", received)
	}
}

func TestSetNumericValueErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(testUpstreamConfig(srv.URL))

	err := client.SetNumericValue(context.Background(), "number.luftator_supply_living", 200)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("SetNumericValue() error = %v, want ErrRequestFailed", err)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://supervisor/core", "ws://supervisor/core/api/websocket"},
		{"https://ha.example.com/", "wss://ha.example.com/api/websocket"},
		{"http://127.0.0.1:8123", "ws://127.0.0.1:8123/api/websocket"},
	}

	for _, tt := range tests {
		if got := websocketURL(tt.base); got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

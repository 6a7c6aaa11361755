package crcon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public_info" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_OK(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"result": {
			"name": "[EU] Seed Squad",
			"player_count": 12,
			"current_map": {"human_name": "Sainte-Marie-du-Mont Warfare"}
		},
		"failed": false
	}`)
	st, err := NewClient(nil).Fetch(context.Background(), srv.URL+"/api/public_info")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if st.ServerName != "[EU] Seed Squad" || st.PlayerCount != 12 || st.MapName != "Sainte-Marie-du-Mont Warfare" {
		t.Fatalf("status=%+v", st)
	}
}

func TestFetch_NestedNameAndPrettyMap(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"result": {
			"name": {"name": "Nested Name", "short_name": "NN"},
			"player_count": 0,
			"current_map": {"map": {"pretty_name": "Carentan"}}
		}
	}`)
	st, err := NewClient(nil).Fetch(context.Background(), srv.URL+"/api/public_info")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if st.ServerName != "Nested Name" || st.PlayerCount != 0 || st.MapName != "Carentan" {
		t.Fatalf("status=%+v", st)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `boom`)
	_, err := NewClient(nil).Fetch(context.Background(), srv.URL+"/api/public_info")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v want *FetchError", err)
	}
	if fe.StatusCode != http.StatusInternalServerError || fe.Body != "boom" {
		t.Fatalf("fetch error=%+v", fe)
	}
}

func TestFetch_MissingFields(t *testing.T) {
	tests := map[string]string{
		"no result":       `{"failed": false}`,
		"no player count": `{"result": {"name": "x", "current_map": {"human_name": "Foy"}}}`,
		"no name":         `{"result": {"player_count": 3, "current_map": {"human_name": "Foy"}}}`,
		"no map":          `{"result": {"name": "x", "player_count": 3}}`,
		"negative count":  `{"result": {"name": "x", "player_count": -1, "current_map": {"human_name": "Foy"}}}`,
		"crcon failed":    `{"result": null, "failed": true, "error": "not connected"}`,
		"not json":        `<html></html>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			_, err := NewClient(nil).Fetch(context.Background(), srv.URL+"/api/public_info")
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("err=%v want *FetchError", err)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(&http.Client{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	if _, err := NewClient(nil).Fetch(context.Background(), " "); err == nil {
		t.Fatalf("expected error")
	}
}

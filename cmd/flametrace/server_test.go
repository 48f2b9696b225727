package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	pingErr    error
	backlog    int64
	backlogErr error
}

func (p fakeProbe) Ping(context.Context) error { return p.pingErr }

func (p fakeProbe) Backlog(context.Context) (int64, error) { return p.backlog, p.backlogErr }

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		probe  fakeProbe
		status int
		want   string
	}{
		{"ok", fakeProbe{backlog: 7}, http.StatusOK, "ok"},
		{"redis down", fakeProbe{pingErr: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
		{"backlog error", fakeProbe{backlogErr: errors.New("WRONGTYPE")}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(tc.probe).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body["status"])
			if tc.status == http.StatusOK {
				assert.Equal(t, float64(7), body["backlog"])
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(fakeProbe{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

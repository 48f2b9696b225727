package alerthttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flametrace/pkg/models"
)

func TestWriteAlertsPostsEnvelope(t *testing.T) {
	var got envelope
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Headers: map[string]string{"X-Token": "secret"}})
	require.NoError(t, err)
	defer w.Close()

	alerts := []*models.Alert{
		{AlertID: "a-1", TraceID: "t1", Frame: "fit", BucketShare: 0.9, RaisedAt: time.Unix(100, 0).UTC()},
		{AlertID: "a-2", TraceID: "t2", Frame: "x10", BucketShare: 0.7, RaisedAt: time.Unix(200, 0).UTC()},
	}
	require.NoError(t, w.WriteAlerts(alerts))

	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "secret", header.Get("X-Token"))
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Alerts, 2)
	assert.Equal(t, "a-2", got.Alerts[1].AlertID)
	assert.Equal(t, "x10", got.Alerts[1].Frame)
}

func TestWriteAlertsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Error(t, w.WriteAlerts([]*models.Alert{{AlertID: "a"}}))
	assert.NoError(t, w.WriteAlerts(nil))

	_, err = NewWriter(Config{})
	assert.Error(t, err)
}

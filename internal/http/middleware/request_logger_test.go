package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/conversations/missing", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "http", entry["component"])
	assert.EqualValues(t, 404, entry["status"])
	assert.Equal(t, "/conversations/missing", entry["path"])
}

func TestRequestLoggerServerErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(logging.NewWithWriter("info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "request failed")
}

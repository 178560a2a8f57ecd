package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{" https://clinic.example/ ", "https://*.riverside.example", ""})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://clinic.example", true},
		{"HTTPS://Clinic.Example", true},
		{"https://book.riverside.example", true},
		{"https://riverside.example", false},
		{"http://book.riverside.example", false},
		{"https://evilriverside.example", false},
		{"https://other.example", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.allows(tt.origin), tt.origin)
	}

	assert.True(t, newOriginPolicy([]string{"*"}).allows("https://random.example"))
	assert.False(t, newOriginPolicy(nil).allows("https://random.example"))
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Origin", "https://clinic.example")
	rec := httptest.NewRecorder()
	CORS([]string{"https://clinic.example"})(handler).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, corsMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, corsHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Request-ID", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	mw := CORS([]string{"https://clinic.example"})

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Origin", "https://unknown.example")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	called = false
	req = httptest.NewRequest(http.MethodOptions, "/conversations", nil)
	req.Header.Set("Origin", "https://unknown.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/conversations", nil)
	req.Header.Set("Origin", "https://book.riverside.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	CORS([]string{"https://*.riverside.example"})(handler).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Vary"))
}

// README: Router tests for route gating and the public probes.
package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"courier/internal/auth"
	apihttp "courier/internal/http"
	"courier/internal/http/handlers"
)

type roleAuthenticator map[string]auth.Principal

func (a roleAuthenticator) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	p, ok := a[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidCredential
	}
	return p, nil
}

func newRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return apihttp.NewRouter(apihttp.RouterDeps{
		Authenticator: roleAuthenticator{
			"customer": {UserID: "c1", Role: auth.RoleCustomer},
			"vendor":   {UserID: "v1", Role: auth.RoleVendor},
		},
		Customer: handlers.NewCustomerHandler(nil),
		Rider:    handlers.NewRiderHandler(nil, nil),
		Vendor:   handlers.NewVendorHandler(nil),
		Health:   handlers.NewHealthHandler(0),
		Log:      zaptest.NewLogger(t),
	})
}

func TestRouteGating(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/customer/orders", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/customer/orders", "nope", http.StatusUnauthorized},
		{"customer on rider route", http.MethodPost, "/api/rider/orders/o1/accept", "customer", http.StatusForbidden},
		{"customer on vendor route", http.MethodGet, "/api/vendor/orders", "customer", http.StatusForbidden},
		{"vendor on customer route", http.MethodPost, "/api/customer/orders", "vendor", http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/admin", "customer", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestProbesArePublic(t *testing.T) {
	r := newRouter(t)
	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/customer/orders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

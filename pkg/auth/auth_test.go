package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(t *testing.T, want Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := FromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, want, ac)
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsMissingIdentity(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewarePassesGatewayIdentity(t *testing.T) {
	want := Context{UserID: "u1", TenantID: "t1", Role: RoleCustomer}
	h := Middleware(echoHandler(t, want))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-Tenant-Id", "t1")
	req.Header.Set("X-User-Role", "customer")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name string
		gate Role
		role Role
		want int
	}{
		{"customer on customer route", RoleCustomer, RoleCustomer, http.StatusOK},
		{"staff on customer route", RoleCustomer, RoleStaff, http.StatusOK},
		{"customer on staff route", RoleStaff, RoleCustomer, http.StatusForbidden},
		{"staff on staff route", RoleStaff, RoleStaff, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Require(tc.gate)(ok)
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(WithContext(req.Context(), Context{UserID: "u", TenantID: "t", Role: tc.role}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireWithoutContext(t *testing.T) {
	h := Require(RoleStaff)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

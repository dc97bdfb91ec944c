package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	app := &MessengerApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	validToken, err := app.createJwtForSession(types.User{Id: "u1"}, time.Hour)
	assert.NoError(t, err)

	tcases := []struct {
		name           string
		cookie         *http.Cookie
		wantStatus     int
		wantUserId     string
		wantNextCalled bool
	}{
		{
			name:       "no cookie",
			cookie:     nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			cookie:     &http.Cookie{Name: tokenCookieKey, Value: "not-a-jwt"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			cookie:         &http.Cookie{Name: tokenCookieKey, Value: validToken},
			wantStatus:     http.StatusOK,
			wantUserId:     "u1",
			wantNextCalled: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var nextCalled bool
			var gotUserId string
			next := func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotUserId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rr := httptest.NewRecorder()

			app.authMiddleware(next)(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code, "expected status to match")
			assert.Equal(t, tc.wantNextCalled, nextCalled, "expected handler invocation to match")
			if tc.wantNextCalled {
				assert.Equal(t, tc.wantUserId, gotUserId, "expected user id attached to the request context")
				assert.NotEmpty(t, rr.Header().Get("Cache-Control"), "expected authed responses marked uncacheable")
			}
		})
	}
}

func TestErrorHandlerRecovers(t *testing.T) {
	app := &MessengerApp{log: testutil.TestLogger(t)}

	h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected a panic to surface as 500")
	assert.Equal(t, "close", rr.Header().Get("Connection"), "expected the connection marked for close")

	var apiErr ApiError
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr), "expected a json error body")
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestErrorHandlerPassThrough(t *testing.T) {
	app := &MessengerApp{log: testutil.TestLogger(t)}

	h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code, "expected the handler's response untouched")
}

package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/limiter"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/service"
	"github.com/lltxwdk/minimars-server/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func echoOperator(seen **models.Operator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := service.OperatorFrom(r.Context())
		if err == nil {
			*seen = op
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	manager, err := jwt.NewSymmetric([]byte("0123456789abcdef0123456789abcdef"), "minimars", time.Hour)
	require.NoError(t, err)
	uid := primitive.NewObjectID()

	t.Run("bearer token", func(t *testing.T) {
		token, err := manager.Generate(uid.Hex(), constants.RoleStaff, jwt.WithName("阿美"))
		require.NoError(t, err)

		var seen *models.Operator
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		NewAuthMiddleware(manager, false, zap.NewNop())(echoOperator(&seen)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, uid, seen.UserID)
		assert.Equal(t, "阿美", seen.Name)
		assert.True(t, seen.IsStaff())
	})

	t.Run("dev headers only when trusted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		req.Header.Set("X-User-Id", uid.Hex())

		var seen *models.Operator
		rec := httptest.NewRecorder()
		NewAuthMiddleware(manager, true, zap.NewNop())(echoOperator(&seen)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, constants.RoleCustomer, seen.Role)

		rec = httptest.NewRecorder()
		NewAuthMiddleware(manager, false, zap.NewNop())(echoOperator(&seen)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejections", func(t *testing.T) {
		badRole, err := manager.Generate(uid.Hex(), "admin")
		require.NoError(t, err)
		badSubject, err := manager.Generate("lily", constants.RoleCustomer)
		require.NoError(t, err)

		for name, header := range map[string]string{
			"missing":     "",
			"not bearer":  "Basic abc",
			"garbage":     "Bearer abc.def.ghi",
			"bad role":    "Bearer " + badRole,
			"bad subject": "Bearer " + badSubject,
		} {
			t.Run(name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				var seen *models.Operator
				rec := httptest.NewRecorder()
				NewAuthMiddleware(manager, false, zap.NewNop())(echoOperator(&seen)).ServeHTTP(rec, req)
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Nil(t, seen)
			})
		}
	})
}

type fakeLimiter struct {
	decision limiter.Decision
	err      error
	seen     string
}

func (f *fakeLimiter) Allow(_ context.Context, identifier string) (limiter.Decision, error) {
	f.seen = identifier
	return f.decision, f.err
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	uid := primitive.NewObjectID()

	t.Run("per operator", func(t *testing.T) {
		l := &fakeLimiter{decision: limiter.Decision{Allowed: true, Remaining: 4}}
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		req = req.WithContext(service.WithOperator(req.Context(), &models.Operator{UserID: uid, Role: constants.RoleCustomer}))
		rec := httptest.NewRecorder()
		CreateRateLimitMiddleware(l, zap.NewNop())(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "user:"+uid.Hex(), l.seen)
	})

	t.Run("denied", func(t *testing.T) {
		l := &fakeLimiter{decision: limiter.Decision{RetryAfter: 1500 * time.Millisecond}}
		req := httptest.NewRequest(http.MethodPost, "/notify/wechatpay", nil)
		req.RemoteAddr = "10.0.0.8:51234"
		rec := httptest.NewRecorder()
		CreateRateLimitMiddleware(l, zap.NewNop())(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
		assert.Equal(t, "ip:10.0.0.8", l.seen)
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		l := &fakeLimiter{err: errors.New("redis down")}
		rec := httptest.NewRecorder()
		CreateRateLimitMiddleware(l, zap.NewNop())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

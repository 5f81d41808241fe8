package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/dto"
	"github.com/lltxwdk/minimars-server/internal/lock"
	"github.com/lltxwdk/minimars-server/internal/logic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

func TestGRPCCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"pricing", logic.ErrMissingPrice, codes.InvalidArgument},
		{"instrument", logic.ErrCardExpired, codes.InvalidArgument},
		{"gateway data", logic.ErrNoCustomerOpenID, codes.InvalidArgument},
		{"unsupported gateway", logic.ErrUnsupportedGateway.WithStage(logic.StageGateway), codes.InvalidArgument},
		{"funds", fmt.Errorf("compose: %w", logic.ErrInsufficientBalance), codes.FailedPrecondition},
		{"state", logic.ErrInvalidStateTransition, codes.FailedPrecondition},
		{"provider", logic.ErrMerchantBalanceInsufficient, codes.Unavailable},
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), codes.NotFound},
		{"permission", logic.ErrPermissionDenied, codes.PermissionDenied},
		{"unauthenticated", ErrUnauthenticated, codes.Unauthenticated},
		{"bad request", dto.ErrInvalidRequest, codes.InvalidArgument},
		{"lock", lock.ErrNotAcquired, codes.Aborted},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GRPCCode(tt.err))
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	t.Run("domain error keeps code and retryable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, zap.NewNop(), "Cancel", logic.ErrMerchantBalanceInsufficient)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "wechat_account_insufficient_balance", body.Code)
		assert.True(t, body.Retryable)
	})

	t.Run("insufficient funds is a precondition failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, zap.NewNop(), "Create", logic.ErrInsufficientBalance.WithStage(logic.StageBalance))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "insufficient_balance", body.Code)
		assert.False(t, body.Retryable)
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, zap.NewNop(), "Get", errors.New("mongo: connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal_error", body.Code)
		assert.NotContains(t, body.Message, "mongo")
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, zap.NewNop(), "Get", repository.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
	})
}

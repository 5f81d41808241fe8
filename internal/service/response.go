package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/dto"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/internal/lock"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type successBody struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, httpCode int, data interface{}) {
	writeRaw(w, httpCode, successBody{Status: "success", Data: data})
}

// WriteHttpError writes a standard JSON error response to the http.ResponseWriter.
func WriteHttpError(w http.ResponseWriter, httpCode int, code, message string) {
	writeError(w, httpCode, ErrorBody{Status: "error", Code: code, Message: message})
}

func writeError(w http.ResponseWriter, httpCode int, body ErrorBody) {
	writeRaw(w, httpCode, body)
}

func writeRaw(w http.ResponseWriter, httpCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	_ = json.NewEncoder(w).Encode(body)
}

// GRPCCode classifies err the same way for gRPC and HTTP callers.
func GRPCCode(err error) codes.Code {
	if de, ok := logic.AsError(err); ok {
		switch de.Kind {
		case logic.KindPricing, logic.KindInstrumentRejected, logic.KindGatewayData, logic.KindUnsupportedGateway:
			return codes.InvalidArgument
		case logic.KindInsufficientFunds, logic.KindInvalidStateTransition:
			return codes.FailedPrecondition
		case logic.KindExternalProvider:
			return codes.Unavailable
		}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, logic.ErrPermissionDenied):
		return codes.PermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, dto.ErrInvalidRequest), errors.Is(err, gateway.ErrBadNotify):
		return codes.InvalidArgument
	case errors.Is(err, repository.ErrConditionNotMet), errors.Is(err, lock.ErrNotAcquired):
		return codes.Aborted
	case errors.Is(err, gateway.ErrUnsupported):
		return codes.Unimplemented
	}
	return codes.Internal
}

// ErrorBodyOf builds the response body. Internal errors never leak their message.
func ErrorBodyOf(err error) ErrorBody {
	body := ErrorBody{Status: "error", Message: err.Error()}
	if de, ok := logic.AsError(err); ok {
		body.Code = de.Code
		body.Message = de.Message
		body.Retryable = de.Retryable()
		return body
	}
	c := GRPCCode(err)
	switch c {
	case codes.Internal:
		body.Code = "internal_error"
		body.Message = "internal server error"
	case codes.Aborted:
		body.Code = "conflict"
		body.Retryable = true
	default:
		body.Code = toSnake(c.String())
	}
	return body
}

// WriteDomainError maps err to an HTTP status and body and logs internal failures.
func WriteDomainError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	c := GRPCCode(err)
	if c == codes.Internal {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Debug(op+" rejected", zap.Error(err), zap.Stringer("code", c))
	}
	writeError(w, runtime.HTTPStatusFromCode(c), ErrorBodyOf(err))
}

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			ch += 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/service"
	"github.com/lltxwdk/minimars-server/pkg/jwt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AuthMiddleware resolves the operator of a request and stores it in the context.
type AuthMiddleware func(http.Handler) http.Handler

// TokenParser is implemented by *jwt.Manager.
type TokenParser interface {
	Parse(tokenString string) (*jwt.Claims, error)
}

// NewAuthMiddleware reads "Authorization: Bearer <jwt>". When trustHeaders is set (dev mode)
// the X-User-Id and X-User-Role headers are accepted instead.
func NewAuthMiddleware(parser TokenParser, trustHeaders bool, logger *zap.Logger) AuthMiddleware {
	l := logger.Named("AuthMiddleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := operatorFromRequest(r, parser, trustHeaders)
			if err != nil {
				l.Debug("Unauthenticated request", zap.Error(err), zap.String("path", r.URL.Path))
				service.WriteHttpError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(service.WithOperator(r.Context(), op)))
		})
	}
}

var (
	errMissingToken = errors.New("missing bearer token")
	errBadSubject   = errors.New("token subject is not a user id")
	errBadRole      = errors.New("unknown role")
)

func operatorFromRequest(r *http.Request, parser TokenParser, trustHeaders bool) (*models.Operator, error) {
	if trustHeaders {
		if uid := r.Header.Get("X-User-Id"); uid != "" {
			role := r.Header.Get("X-User-Role")
			if role == "" {
				role = constants.RoleCustomer
			}
			return newOperator(uid, "", role)
		}
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return nil, errMissingToken
	}
	claims, err := parser.Parse(token)
	if err != nil {
		return nil, err
	}
	return newOperator(claims.Subject, claims.Name, claims.Role)
}

func newOperator(subject, name, role string) (*models.Operator, error) {
	uid, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return nil, errBadSubject
	}
	switch role {
	case constants.RoleCustomer, constants.RoleStaff, constants.RoleReviewer:
	default:
		return nil, errBadRole
	}
	return &models.Operator{UserID: uid, Name: name, Role: role}, nil
}

package grpc

import (
	"context"
	"strings"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/service"
	"github.com/lltxwdk/minimars-server/pkg/jwt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenParser is implemented by *jwt.Manager.
type TokenParser interface {
	Parse(tokenString string) (*jwt.Claims, error)
}

// publicMethodPrefixes need no operator.
var publicMethodPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// AuthInterceptor reads the operator from the "authorization" metadata. When trustHeaders
// is set (dev mode) "x-user-id" and "x-user-role" are accepted instead.
func AuthInterceptor(parser TokenParser, trustHeaders bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		for _, prefix := range publicMethodPrefixes {
			if strings.HasPrefix(info.FullMethod, prefix) {
				return handler(ctx, req)
			}
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: missing metadata")
		}

		op, err := operatorFromMetadata(md, parser, trustHeaders)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
		}
		return handler(service.WithOperator(ctx, op), req)
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func operatorFromMetadata(md metadata.MD, parser TokenParser, trustHeaders bool) (*models.Operator, error) {
	subject, name, role := "", "", ""
	if uid := first(md, "x-user-id"); trustHeaders && uid != "" {
		subject, role = uid, first(md, "x-user-role")
	} else {
		token, ok := strings.CutPrefix(first(md, "authorization"), "Bearer ")
		if !ok || token == "" {
			return nil, service.ErrUnauthenticated
		}
		claims, err := parser.Parse(token)
		if err != nil {
			return nil, err
		}
		subject, name, role = claims.Subject, claims.Name, claims.Role
	}

	uid, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = constants.RoleCustomer
	}
	return &models.Operator{UserID: uid, Name: name, Role: role}, nil
}

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/dto"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads and validates a request body. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", dto.ErrInvalidRequest, err)
	}
	return dto.Validate(dst)
}

func pathObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(r.PathValue(name))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s is not a valid id", dto.ErrInvalidRequest, name)
	}
	return id, nil
}

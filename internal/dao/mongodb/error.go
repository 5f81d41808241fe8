package mongodb

import (
	"errors"

	"github.com/lltxwdk/minimars-server/internal/dao/repository"
)

var (
	ErrNotFound        = repository.ErrNotFound
	ErrConditionNotMet = repository.ErrConditionNotMet
	ErrInvalidID       = errors.New("invalid object id")
)

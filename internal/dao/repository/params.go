package repository

import (
	"time"

	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Parameter Structs ---

type CardQuotaParams struct {
	CardID   primitive.ObjectID
	Date     string
	Statuses []string
	Exclude  *primitive.ObjectID
}

type BookingFilter struct {
	Customer *primitive.ObjectID
	Store    *primitive.ObjectID
	Date     string
	Status   []string
	Type     string
}

// StaleBookingsParams selects bookings in Status that were created before CreatedBefore,
// or whose date is before DateBefore. Zero values disable a condition.
type StaleBookingsParams struct {
	Status        string
	CreatedBefore time.Time
	DateBefore    string
	Limit         int
}

type MarkPaidParams struct {
	PaidAt        time.Time
	GatewayData   *models.GatewayData
	AmountDeposit *money.Amount
	Assets        money.Amount
	Debt          money.Amount
	Revenue       money.Amount
}

package models

import (
	"slices"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultCardMinKids           = 1
	DefaultCardFreeParentsPerKid = 2
)

type Card struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Customer            primitive.ObjectID   `bson:"customer" json:"customer"`
	Slug                string               `bson:"slug" json:"slug"`
	Title               string               `bson:"title" json:"title"`
	Type                constants.CardType   `bson:"type" json:"type"`
	Status              constants.CardStatus `bson:"status" json:"status"`
	Times               int                  `bson:"times,omitempty" json:"times,omitempty"`
	TimesLeft           int                  `bson:"times_left,omitempty" json:"times_left,omitempty"`
	Price               money.Amount         `bson:"price" json:"price"`
	Balance             money.Amount         `bson:"balance" json:"balance"`
	MaxKids             int                  `bson:"max_kids" json:"max_kids"`
	MinKids             int                  `bson:"min_kids" json:"min_kids"`
	FreeParentsPerKid   int                  `bson:"free_parents_per_kid" json:"free_parents_per_kid"`
	DayType             constants.DayType    `bson:"day_type,omitempty" json:"day_type,omitempty"`
	Stores              []primitive.ObjectID `bson:"stores" json:"stores"`
	Start               *time.Time           `bson:"start,omitempty" json:"start,omitempty"`
	ExpiresAt           *time.Time           `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	RewardedFromBooking *primitive.ObjectID  `bson:"rewarded_from_booking,omitempty" json:"rewarded_from_booking,omitempty"`
	Payments            []primitive.ObjectID `bson:"payments" json:"payments"`
	CreatedAt           time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time            `bson:"updated_at" json:"updated_at"`
}

// AllowsStore reports whether the card may be used at store. An empty list allows all stores;
// a store-scoped card never matches a booking without a store.
func (c *Card) AllowsStore(store *primitive.ObjectID) bool {
	if len(c.Stores) == 0 {
		return true
	}
	return store != nil && slices.Contains(c.Stores, *store)
}

// CoveredKids is the number of kids the card pays for in one booking.
func (c *Card) CoveredKids(kids int) int {
	if c.MaxKids > 0 && kids > c.MaxKids {
		return c.MaxKids
	}
	return kids
}

// CardType is the template cards are issued from.
type CardType struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Slug              string               `bson:"slug" json:"slug"`
	Title             string               `bson:"title" json:"title"`
	Type              constants.CardType   `bson:"type" json:"type"`
	OpenForSale       bool                 `bson:"open_for_sale" json:"open_for_sale"`
	Times             int                  `bson:"times,omitempty" json:"times,omitempty"`
	Price             money.Amount         `bson:"price" json:"price"`
	Balance           money.Amount         `bson:"balance" json:"balance"`
	MaxKids           int                  `bson:"max_kids" json:"max_kids"`
	MinKids           int                  `bson:"min_kids" json:"min_kids"`
	FreeParentsPerKid int                  `bson:"free_parents_per_kid" json:"free_parents_per_kid"`
	DayType           constants.DayType    `bson:"day_type,omitempty" json:"day_type,omitempty"`
	Stores            []primitive.ObjectID `bson:"stores" json:"stores"`
	ExpiresInDays     int                  `bson:"expires_in_days,omitempty" json:"expires_in_days,omitempty"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at" json:"updated_at"`
}

// Issue creates a pending card for customer from the template.
func (t *CardType) Issue(customer primitive.ObjectID, now time.Time) *Card {
	card := &Card{
		Customer:          customer,
		Slug:              t.Slug,
		Title:             t.Title,
		Type:              t.Type,
		Status:            constants.CardStatusPending,
		Times:             t.Times,
		TimesLeft:         t.Times,
		Price:             t.Price,
		Balance:           t.Balance,
		MaxKids:           t.MaxKids,
		MinKids:           t.MinKids,
		FreeParentsPerKid: t.FreeParentsPerKid,
		DayType:           t.DayType,
		Stores:            t.Stores,
		Payments:          []primitive.ObjectID{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if card.MinKids == 0 {
		card.MinKids = DefaultCardMinKids
	}
	if card.FreeParentsPerKid == 0 {
		card.FreeParentsPerKid = DefaultCardFreeParentsPerKid
	}
	if t.ExpiresInDays > 0 {
		y, m, d := now.Date()
		expires := time.Date(y, m, d+t.ExpiresInDays, 23, 59, 59, 0, now.Location())
		card.ExpiresAt = &expires
	}
	return card
}

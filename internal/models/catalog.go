package models

import (
	"slices"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coupon is a discount template. It is never consumed.
type Coupon struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title             string               `bson:"title" json:"title"`
	Scene             constants.Scene      `bson:"scene" json:"scene"`
	KidsCount         int                  `bson:"kids_count" json:"kids_count"`
	Price             money.Amount         `bson:"price" json:"price"`
	PriceThirdParty   money.Amount         `bson:"price_third_party" json:"price_third_party"`
	FreeParentsPerKid int                  `bson:"free_parents_per_kid" json:"free_parents_per_kid"`
	Stores            []primitive.ObjectID `bson:"stores" json:"stores"`
	Start             *time.Time           `bson:"start,omitempty" json:"start,omitempty"`
	End               *time.Time           `bson:"end,omitempty" json:"end,omitempty"`
	Enabled           bool                 `bson:"enabled" json:"enabled"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at" json:"updated_at"`
}

func (c *Coupon) AllowsStore(store *primitive.ObjectID) bool {
	if len(c.Stores) == 0 {
		return true
	}
	return store != nil && slices.Contains(c.Stores, *store)
}

type Event struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title         string              `bson:"title" json:"title"`
	Store         *primitive.ObjectID `bson:"store,omitempty" json:"store,omitempty"`
	Date          string              `bson:"date,omitempty" json:"date,omitempty"`
	KidsCountMax  int                 `bson:"kids_count_max,omitempty" json:"kids_count_max,omitempty"`
	KidsCountLeft int                 `bson:"kids_count_left,omitempty" json:"kids_count_left,omitempty"`
	Price         money.Amount        `bson:"price" json:"price"`
	PriceInPoints int64               `bson:"price_in_points,omitempty" json:"price_in_points,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// Limited reports whether the event tracks remaining seats.
func (e *Event) Limited() bool {
	return e.KidsCountMax > 0
}

type Gift struct {
	ID                     primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title                  string              `bson:"title" json:"title"`
	Store                  *primitive.ObjectID `bson:"store,omitempty" json:"store,omitempty"`
	Quantity               *int                `bson:"quantity,omitempty" json:"quantity,omitempty"` // nil 表示不限量
	MaxQuantityPerCustomer int                 `bson:"max_quantity_per_customer,omitempty" json:"max_quantity_per_customer,omitempty"`
	Price                  money.Amount        `bson:"price" json:"price"`
	PriceInPoints          int64               `bson:"price_in_points,omitempty" json:"price_in_points,omitempty"`
	TagCustomer            string              `bson:"tag_customer,omitempty" json:"tag_customer,omitempty"`
	UseBalance             bool                `bson:"use_balance" json:"use_balance"`
	RewardCardType         string              `bson:"reward_card_type,omitempty" json:"reward_card_type,omitempty"`
	CreatedAt              time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time           `bson:"updated_at" json:"updated_at"`
}

func (g *Gift) Limited() bool {
	return g.Quantity != nil
}

type Store struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                    string             `bson:"name" json:"name"`
	Address                 string             `bson:"address,omitempty" json:"address,omitempty"`
	KidFullDayPrice         *money.Amount      `bson:"kid_full_day_price,omitempty" json:"kid_full_day_price,omitempty"`
	ExtraParentFullDayPrice *money.Amount      `bson:"extra_parent_full_day_price,omitempty" json:"extra_parent_full_day_price,omitempty"`
	FreeParentsPerKid       *int               `bson:"free_parents_per_kid,omitempty" json:"free_parents_per_kid,omitempty"`
	CreatedAt               time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time          `bson:"updated_at" json:"updated_at"`
}

package models

import (
	"slices"
	"time"

	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Customer struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Mobile         string             `bson:"mobile,omitempty" json:"mobile,omitempty"`
	OpenID         string             `bson:"openid,omitempty" json:"-"`
	BalanceDeposit money.Amount       `bson:"balance_deposit" json:"balance_deposit"`
	BalanceReward  money.Amount       `bson:"balance_reward" json:"balance_reward"`
	Points         int64              `bson:"points" json:"points"`
	Tags           []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// Balance is always derived from the two sub-ledgers.
func (c *Customer) Balance() money.Amount {
	return c.BalanceDeposit.Add(c.BalanceReward)
}

func (c *Customer) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

package models

import (
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsKey is the key of the single pricing settings document.
const SettingsKey = "pricing"

// Settings holds venue wide pricing and the holiday calendar exceptions.
type Settings struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Key                     string             `bson:"key" json:"-"`
	SockPrice               money.Amount       `bson:"sock_price" json:"sock_price"`
	ExtraParentFullDayPrice money.Amount       `bson:"extra_parent_full_day_price" json:"extra_parent_full_day_price"`
	KidFullDayPrice         money.Amount       `bson:"kid_full_day_price" json:"kid_full_day_price"`
	FreeParentsPerKid       int                `bson:"free_parents_per_kid" json:"free_parents_per_kid"`
	AppointmentDeadline     string             `bson:"appointment_deadline" json:"appointment_deadline"`
	OffWeekdays             []string           `bson:"off_weekdays" json:"off_weekdays"` // 週一至週五的法定假日
	OnWeekends              []string           `bson:"on_weekends" json:"on_weekends"`   // 週末調休上班日
}

package logic

import (
	"fmt"
	"strings"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
)

const (
	foodTitle      = "餐饮消费"
	allStoresTitle = "门店通用"
	refundPrefix   = "退款："
	pointsPrefix   = "积分退还："
)

// UpgradeTitle describes the card payment that replaces a ticket.
func UpgradeTitle(card *models.Card) string {
	return fmt.Sprintf("升级使用%s支付", card.Title)
}

// BookingTitle is the human readable description used on payments and provider orders.
func BookingTitle(b *models.Booking, storeName string, event *models.Event, gift *models.Gift) string {
	switch b.Type {
	case constants.BookingTypeGift:
		title := ""
		if gift != nil {
			title = gift.Title
		}
		scope := storeName
		if scope == "" {
			scope = allStoresTitle
		}
		return fmt.Sprintf("%s %d份 %s", title, b.Quantity, scope)
	case constants.BookingTypeEvent:
		title := ""
		if event != nil {
			title = event.Title
		}
		return strings.TrimSpace(fmt.Sprintf("%s %d人 %s", title, b.KidsCount, storeName))
	case constants.BookingTypeFood:
		return foodTitle
	default:
		// 2024-05-01 -> 05-01, 16:00:00 -> 16:00
		day := b.Date
		if len(day) == len(models.DateLayout) {
			day = day[5:]
		}
		at := b.CheckInTime
		if len(at) >= 5 {
			at = at[:5]
		}
		return fmt.Sprintf("%s %d大%d小 %s %s前入场", storeName, b.AdultsCount, b.KidsCount, day, at)
	}
}

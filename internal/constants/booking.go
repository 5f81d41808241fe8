package constants

type BookingStatus int

const (
	BookingStatusUnknown BookingStatus = iota
	BookingStatusPending
	BookingStatusBooked
	BookingStatusInService
	BookingStatusPendingRefund
	BookingStatusFinished
	BookingStatusCanceled
)

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusPending:
		return "pending"
	case BookingStatusBooked:
		return "booked"
	case BookingStatusInService:
		return "in_service"
	case BookingStatusPendingRefund:
		return "pending_refund"
	case BookingStatusFinished:
		return "finished"
	case BookingStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var bookingStatusMap = map[string]BookingStatus{
	"pending":        BookingStatusPending,
	"booked":         BookingStatusBooked,
	"in_service":     BookingStatusInService,
	"pending_refund": BookingStatusPendingRefund,
	"finished":       BookingStatusFinished,
	"canceled":       BookingStatusCanceled,
	"unknown":        BookingStatusUnknown,
}

func ParseBookingStatus(s string) BookingStatus {
	if status, ok := bookingStatusMap[s]; ok {
		return status
	}
	return BookingStatusUnknown
}

// PaidBookingStatuses are the statuses that hold card quota and gift redemptions.
var PaidBookingStatuses = []string{
	BookingStatusBooked.String(),
	BookingStatusInService.String(),
	BookingStatusPendingRefund.String(),
	BookingStatusFinished.String(),
}

// BookingType 預約類型
type BookingType string

const (
	BookingTypePlay  BookingType = "play"
	BookingTypeParty BookingType = "party"
	BookingTypeEvent BookingType = "event"
	BookingTypeGift  BookingType = "gift"
	BookingTypeFood  BookingType = "food"
)

func (t BookingType) String() string {
	return string(t)
}

func (t BookingType) Valid() bool {
	switch t {
	case BookingTypePlay, BookingTypeParty, BookingTypeEvent, BookingTypeGift, BookingTypeFood:
		return true
	}
	return false
}

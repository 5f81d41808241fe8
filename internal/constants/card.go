package constants

type CardStatus string

const (
	CardStatusPending   CardStatus = "pending"
	CardStatusValid     CardStatus = "valid" // 已購買未啟用
	CardStatusActivated CardStatus = "activated"
	CardStatusExpired   CardStatus = "expired"
	CardStatusCanceled  CardStatus = "canceled"
)

func (s CardStatus) String() string {
	return string(s)
}

type CardType string

const (
	CardTypeTimes   CardType = "times"
	CardTypePeriod  CardType = "period"
	CardTypeBalance CardType = "balance"
	CardTypeCoupon  CardType = "coupon"
	CardTypePartner CardType = "partner"
)

func (t CardType) String() string {
	return string(t)
}

// DayType restricts which calendar days a card can be used on.
type DayType string

const (
	DayTypeAny     DayType = ""
	DayTypeOnDays  DayType = "onDaysOnly"
	DayTypeOffDays DayType = "offDaysOnly"
)

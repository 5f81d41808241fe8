package logic

import (
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
)

// Report is the accounting view of one payment. Debt is the signed change of what the
// venue owes the customer; revenue is always assets minus debt.
type Report struct {
	Assets  money.Amount
	Debt    money.Amount
	Revenue money.Amount
}

// DeriveReport computes the report fields. Balance payments must already carry their amountDeposit.
// Reversals have negative amounts and fall out of the same formulas.
func DeriveReport(p *models.Payment) Report {
	var r Report
	switch p.Gateway {
	case constants.GatewayBalance:
		r.Debt = p.AmountDeposit.Neg()
	case constants.GatewayCard:
		// 次卡消費釋放預收
		r.Debt = p.Amount.Neg()
	case constants.GatewayPoints:
	default:
		r.Assets = p.Amount
	}
	if p.Attach.Kind == constants.AttachCard {
		r.Debt = r.Debt.Add(p.Amount)
	}
	r.Assets = r.Assets.Round2()
	r.Debt = r.Debt.Round2()
	r.Revenue = r.Assets.Sub(r.Debt)
	return r
}

func applyReport(p *models.Payment) {
	r := DeriveReport(p)
	p.Assets, p.Debt, p.Revenue = r.Assets, r.Debt, r.Revenue
}

// CardScene is the reporting scene of a card purchase.
func CardScene(t constants.CardType) constants.Scene {
	if t == constants.CardTypeBalance {
		return constants.SceneBalance
	}
	return constants.SceneCard
}

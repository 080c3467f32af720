package domain

import "github.com/shopspring/decimal"

type SideView struct {
	Side       Side            `json:"side"`
	Credits    decimal.Decimal `json:"credits"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// WagerView é a projeção somente leitura de um wager
type WagerView struct {
	WagerID   string          `json:"wagerId"`
	Status    WagerStatus     `json:"status"`
	WagerType string          `json:"wagerType"`
	EventRef  EventRef        `json:"eventRef"`
	Predicate Predicate       `json:"predicate"`
	Agree     SideView        `json:"agree"`
	Disagree  SideView        `json:"disagree"`
	Total     decimal.Decimal `json:"total"`
	Result    Result          `json:"result,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// NewWagerView calcula totais e percentuais; pool vazio dá 0% nos dois lados
func NewWagerView(w *Wager) WagerView {
	total := w.TotalPool()
	pct := func(v decimal.Decimal) decimal.Decimal {
		if total.IsZero() {
			return decimal.Zero
		}
		return v.Mul(hundred).Div(total).Round(2)
	}
	return WagerView{
		WagerID:   w.ID,
		Status:    w.Status,
		WagerType: w.WagerType,
		EventRef:  w.EventRef,
		Predicate: w.Predicate,
		Agree: SideView{
			Side:       SideAgree,
			Credits:    w.AgreeCreditsBet,
			Count:      w.AgreeBetsCount,
			Percentage: pct(w.AgreeCreditsBet),
		},
		Disagree: SideView{
			Side:       SideDisagree,
			Credits:    w.DisagreeCreditsBet,
			Count:      w.DisagreeBetsCount,
			Percentage: pct(w.DisagreeCreditsBet),
		},
		Total:  total,
		Result: w.Result,
	}
}

package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PayoutPlaces é a precisão em casas decimais de cada crédito pago
const PayoutPlaces = 4

// ErrEmptyWinningPool indica que ninguém apostou no lado vencedor
var ErrEmptyWinningPool = errors.New("winning pool is empty")

// CalculatePayouts distribui o pool pari-mutuel entre os vencedores:
// payout = s + L * (s / W). Apostas do mesmo usuário são somadas.
// A sobra de arredondamento vai para a maior aposta, então a soma
// dos payouts é exatamente W + L.
func CalculatePayouts(bets []Bet, winning Side) ([]Payout, error) {
	stakes, order := stakesBySide(bets, winning)
	w := decimal.Zero
	l := decimal.Zero
	for _, b := range bets {
		if b.Side == winning {
			w = w.Add(b.Credits)
		} else {
			l = l.Add(b.Credits)
		}
	}
	if !w.IsPositive() {
		return nil, ErrEmptyWinningPool
	}

	out := make([]Payout, 0, len(order))
	paid := decimal.Zero
	largest := 0
	for i, userID := range order {
		s := stakes[userID]
		amount := s.Add(l.Mul(s).Div(w)).RoundDown(PayoutPlaces)
		out = append(out, Payout{UserID: userID, Amount: amount, Kind: PayoutWin})
		paid = paid.Add(amount)
		if s.GreaterThan(stakes[order[largest]]) {
			largest = i
		}
	}

	if dust := w.Add(l).Sub(paid); !dust.IsZero() {
		out[largest].Amount = out[largest].Amount.Add(dust)
	}
	return out, nil
}

// CalculateRefunds devolve a cada usuário o total que ele apostou
func CalculateRefunds(bets []Bet) []Payout {
	stakes := map[string]decimal.Decimal{}
	var order []string
	for _, b := range bets {
		if _, ok := stakes[b.UserID]; !ok {
			order = append(order, b.UserID)
			stakes[b.UserID] = decimal.Zero
		}
		stakes[b.UserID] = stakes[b.UserID].Add(b.Credits)
	}
	out := make([]Payout, 0, len(order))
	for _, userID := range order {
		out = append(out, Payout{UserID: userID, Amount: stakes[userID], Kind: PayoutRefund})
	}
	return out
}

func stakesBySide(bets []Bet, side Side) (map[string]decimal.Decimal, []string) {
	stakes := map[string]decimal.Decimal{}
	var order []string
	for _, b := range bets {
		if b.Side != side {
			continue
		}
		if _, ok := stakes[b.UserID]; !ok {
			order = append(order, b.UserID)
			stakes[b.UserID] = decimal.Zero
		}
		stakes[b.UserID] = stakes[b.UserID].Add(b.Credits)
	}
	return stakes, order
}

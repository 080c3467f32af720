package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

type CreateWagerRequest struct {
	EventLevel string           `json:"eventLevel"` // match | series | tournament | season
	EventID    string           `json:"eventId"`
	WagerType  string           `json:"wagerType"` // ex: "Match Winner", "First Blood"
	Predicate  domain.Predicate `json:"predicate"`
	Draft      bool             `json:"draft,omitempty"`
}

// PlaceBetRequest: o usuário vem do header X-User-ID
type PlaceBetRequest struct {
	Side    string          `json:"side"` // agree | disagree
	Credits decimal.Decimal `json:"credits"`
}

type ConcludeMatchRequest struct {
	Results        []domain.PlayerResult `json:"results"`
	FirstBlood     string                `json:"firstBlood"`
	WentToOvertime bool                  `json:"wentToOvertime"`
	EndTournament  *domain.Declaration   `json:"endTournament,omitempty"`
	EndSeason      *domain.Declaration   `json:"endSeason,omitempty"`
}

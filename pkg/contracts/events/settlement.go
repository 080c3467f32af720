package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payloads emitidos pelo motor de liquidação. Key() define a chave de
// roteamento usada no Kafka e nas assinaturas do broadcast.

type WagerUpdated struct {
	WagerID         string          `json:"wagerId"`
	Status          string          `json:"status"`
	AgreeCredits    decimal.Decimal `json:"agreeCreditsBet"`
	DisagreeCredits decimal.Decimal `json:"disagreeCreditsBet"`
	AgreeCount      int             `json:"agreeBetsCount"`
	DisagreeCount   int             `json:"disagreeBetsCount"`
	Result          string          `json:"result,omitempty"`
	Ts              time.Time       `json:"ts"`
}

func (e WagerUpdated) Key() string { return "wager:" + e.WagerID }

type WagerSettled struct {
	WagerID     string          `json:"wagerId"`
	Event       string          `json:"event"`
	Result      string          `json:"result"`
	Payouts     int             `json:"payouts"`
	PaidCredits decimal.Decimal `json:"paidCredits"`
	Ts          time.Time       `json:"ts"`
}

func (e WagerSettled) Key() string { return "wager:" + e.WagerID }

type UserUpdated struct {
	UserID                string          `json:"userId"`
	Credits               decimal.Decimal `json:"credits"`
	EarnedCredits         decimal.Decimal `json:"earnedCredits"`
	LifetimeEarnedCredits decimal.Decimal `json:"lifetimeEarnedCredits"`
	Reason                string          `json:"reason"` // bet | payout | refund
	WagerID               string          `json:"wagerId,omitempty"`
	Ts                    time.Time       `json:"ts"`
}

func (e UserUpdated) Key() string { return "user:" + e.UserID }

type EventConcluded struct {
	Level    string    `json:"level"`
	EventID  string    `json:"eventId"`
	WinnerID string    `json:"winnerId,omitempty"`
	LoserID  string    `json:"loserId,omitempty"`
	Score    string    `json:"score,omitempty"`
	Ts       time.Time `json:"ts"`
}

func (e EventConcluded) Key() string { return e.Level + ":" + e.EventID }

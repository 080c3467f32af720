package dto

import "github.com/shopspring/decimal"

type CreateWagerResponse struct {
	WagerID string `json:"wagerId"`
	Status  string `json:"status"`
}

type PlaceBetResponse struct {
	BetID      string          `json:"betId"`
	WagerID    string          `json:"wagerId"`
	Side       string          `json:"side"`
	Credits    decimal.Decimal `json:"credits"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type EventStartedResponse struct {
	Event        string `json:"event"`
	WagersClosed int    `json:"wagersClosed"`
}

type QueuedResponse struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"` // QUEUED
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

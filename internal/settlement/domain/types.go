package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side é o lado de uma aposta em um wager binário
type Side string

const (
	SideAgree    Side = "agree"
	SideDisagree Side = "disagree"
)

func (s Side) Valid() bool { return s == SideAgree || s == SideDisagree }

// WagerStatus só avança: created -> bettable -> ongoing -> ended
type WagerStatus string

const (
	WagerCreated  WagerStatus = "created"
	WagerBettable WagerStatus = "bettable"
	WagerOngoing  WagerStatus = "ongoing"
	WagerEnded    WagerStatus = "ended"
)

func (s WagerStatus) rank() int {
	switch s {
	case WagerCreated:
		return 0
	case WagerBettable:
		return 1
	case WagerOngoing:
		return 2
	case WagerEnded:
		return 3
	}
	return -1
}

// CanMoveTo informa se a transição é para frente
func (s WagerStatus) CanMoveTo(next WagerStatus) bool {
	return s.rank() >= 0 && next.rank() > s.rank()
}

// Result é o veredito gravado quando o wager termina
type Result string

const (
	ResultNone     Result = ""
	ResultAgree    Result = "agree"
	ResultDisagree Result = "disagree"
	ResultVoid     Result = "void"
)

type User struct {
	ID                    string          `json:"id"`
	Credits               decimal.Decimal `json:"credits"`
	EarnedCredits         decimal.Decimal `json:"earnedCredits"`
	LifetimeEarnedCredits decimal.Decimal `json:"lifetimeEarnedCredits"`
}

type Wager struct {
	ID                 string          `json:"id"`
	Status             WagerStatus     `json:"status"`
	WagerType          string          `json:"wagerType"`
	EventRef           EventRef        `json:"eventRef"`
	Predicate          Predicate       `json:"predicate"`
	AgreeCreditsBet    decimal.Decimal `json:"agreeCreditsBet"`
	DisagreeCreditsBet decimal.Decimal `json:"disagreeCreditsBet"`
	AgreeBetsCount     int             `json:"agreeBetsCount"`
	DisagreeBetsCount  int             `json:"disagreeBetsCount"`
	Bets               []string        `json:"bets"`
	AgreeIsWinner      *bool           `json:"agreeIsWinner,omitempty"`
	Result             Result          `json:"result,omitempty"`
	PaidOut            bool            `json:"paidOut"`
	ReviewReason       string          `json:"reviewReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// Pool devolve o total apostado em um lado
func (w *Wager) Pool(side Side) decimal.Decimal {
	if side == SideAgree {
		return w.AgreeCreditsBet
	}
	return w.DisagreeCreditsBet
}

// TotalPool é a soma dos dois lados
func (w *Wager) TotalPool() decimal.Decimal {
	return w.AgreeCreditsBet.Add(w.DisagreeCreditsBet)
}

type Bet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	WagerID   string          `json:"wagerId"`
	Side      Side            `json:"side"`
	Credits   decimal.Decimal `json:"credits"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PayoutKind distingue prêmio de estorno no livro de pagamentos
type PayoutKind string

const (
	PayoutWin    PayoutKind = "win"
	PayoutRefund PayoutKind = "refund"
)

// Payout é um crédito único por (wager, usuário)
type Payout struct {
	WagerID string          `json:"wagerId"`
	UserID  string          `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    PayoutKind      `json:"kind"`
}

// EventLevel identifica o nível na hierarquia de eventos
type EventLevel string

const (
	LevelMatch      EventLevel = "match"
	LevelSeries     EventLevel = "series"
	LevelTournament EventLevel = "tournament"
	LevelSeason     EventLevel = "season"
)

func (l EventLevel) Valid() bool {
	switch l {
	case LevelMatch, LevelSeries, LevelTournament, LevelSeason:
		return true
	}
	return false
}

// EventRef aponta para um nó da hierarquia apenas por id
type EventRef struct {
	Level EventLevel `json:"level"`
	ID    string     `json:"id"`
}

func (r EventRef) String() string { return string(r.Level) + ":" + r.ID }

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventStarted   EventStatus = "started"
	EventEnded     EventStatus = "ended"
)

type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Players []string `json:"players"`
}

type Player struct {
	ID      string `json:"id"`
	TeamRef string `json:"teamRef"`
	Name    string `json:"name"`
}

// PlayerResult é a linha bruta de estatísticas de um jogador, chaveada pelo nome
type PlayerResult struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

type Match struct {
	ID             string      `json:"id"`
	Teams          [2]string   `json:"teams"`
	SeriesRef      string      `json:"seriesRef"`
	Status         EventStatus `json:"status"`
	WinnerID       string      `json:"winnerId,omitempty"`
	LoserID        string      `json:"loserId,omitempty"`
	FirstBlood     string      `json:"firstBlood,omitempty"`
	WentToOvertime bool        `json:"wentToOvertime"`
	MVP            string      `json:"mvp,omitempty"`
	Score          string      `json:"score,omitempty"`
	Outcome        *Outcome    `json:"outcome,omitempty"`
}

type Series struct {
	ID            string         `json:"id"`
	Matches       []string       `json:"matches"`
	Teams         [2]string      `json:"teams"`
	BestOf        int            `json:"bestOf"`
	TournamentRef string         `json:"tournamentRef"`
	Status        EventStatus    `json:"status"`
	Wins          map[string]int `json:"wins,omitempty"`
	WinnerID      string         `json:"winnerId,omitempty"`
	LoserID       string         `json:"loserId,omitempty"`
	FirstBlood    string         `json:"firstBlood,omitempty"`
	OvertimeCount int            `json:"overtimeCount"`
	Outcome       *Outcome       `json:"outcome,omitempty"`
}

// WinsNeeded é ceil(bestOf/2)
func (s *Series) WinsNeeded() int {
	if s.BestOf <= 0 {
		return 1
	}
	return (s.BestOf + 1) / 2
}

type Tournament struct {
	ID        string      `json:"id"`
	Series    []string    `json:"series"`
	SeasonRef string      `json:"seasonRef"`
	Status    EventStatus `json:"status"`
	WinnerID  string      `json:"winnerId,omitempty"`
	LoserID   string      `json:"loserId,omitempty"`
	Outcome   *Outcome    `json:"outcome,omitempty"`
}

type Season struct {
	ID          string      `json:"id"`
	Tournaments []string    `json:"tournaments"`
	Status      EventStatus `json:"status"`
	WinnerID    string      `json:"winnerId,omitempty"`
	Outcome     *Outcome    `json:"outcome,omitempty"`
}

// Declaration é o resultado declarado pelo admin para torneio/temporada
type Declaration struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId,omitempty"`
}

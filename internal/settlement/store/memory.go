package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// Memory implementa Store em memória. Um único mutex serializa todas as
// operações, então cada chamada é atômica. Usado em ENV=local e nos testes.
type Memory struct {
	mu sync.Mutex

	users   map[string]*domain.User
	wagers  map[string]*domain.Wager
	bets    map[string]domain.Bet
	payouts map[string]domain.Payout

	teams       map[string]*domain.Team
	players     map[string]*domain.Player
	matches     map[string]*domain.Match
	series      map[string]*domain.Series
	tournaments map[string]*domain.Tournament
	seasons     map[string]*domain.Season
}

func NewMemory() *Memory {
	return &Memory{
		users:       map[string]*domain.User{},
		wagers:      map[string]*domain.Wager{},
		bets:        map[string]domain.Bet{},
		payouts:     map[string]domain.Payout{},
		teams:       map[string]*domain.Team{},
		players:     map[string]*domain.Player{},
		matches:     map[string]*domain.Match{},
		series:      map[string]*domain.Series{},
		tournaments: map[string]*domain.Tournament{},
		seasons:     map[string]*domain.Season{},
	}
}

var _ Store = (*Memory)(nil)

func payoutKey(wagerID, userID string) string { return wagerID + "|" + userID }

// --- Ledger ---

func (m *Memory) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NotFoundf("user %s", id)
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) SaveUser(_ context.Context, u *domain.User) error {
	if u.Credits.IsNegative() {
		return domain.Validationf("credits cannot be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(userID, amount)
}

func (m *Memory) debitLocked(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, domain.NotFoundf("user %s", userID)
	}
	if u.Credits.LessThan(amount) {
		return u.Credits, domain.InsufficientCreditsf("user %s has %s, needs %s", userID, u.Credits, amount)
	}
	u.Credits = u.Credits.Sub(amount)
	return u.Credits, nil
}

func (m *Memory) PlaceBet(_ context.Context, bet *domain.Bet) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wagers[bet.WagerID]
	if !ok {
		return decimal.Zero, domain.NotFoundf("wager %s", bet.WagerID)
	}
	if _, ok := m.users[bet.UserID]; !ok {
		return decimal.Zero, domain.NotFoundf("user %s", bet.UserID)
	}
	if w.Status != domain.WagerBettable {
		return decimal.Zero, domain.InvalidTransitionf("wager %s is %s, not bettable", w.ID, w.Status)
	}
	balance, err := m.debitLocked(bet.UserID, bet.Credits)
	if err != nil {
		return balance, err
	}

	// acumulador do pool: total, contagem e lista de apostas juntos
	if bet.Side == domain.SideAgree {
		w.AgreeCreditsBet = w.AgreeCreditsBet.Add(bet.Credits)
		w.AgreeBetsCount++
	} else {
		w.DisagreeCreditsBet = w.DisagreeCreditsBet.Add(bet.Credits)
		w.DisagreeBetsCount++
	}
	w.Bets = append(w.Bets, bet.ID)
	m.bets[bet.ID] = *bet
	return balance, nil
}

func (m *Memory) CreditPayout(_ context.Context, p domain.Payout) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := payoutKey(p.WagerID, p.UserID)
	if _, done := m.payouts[key]; done {
		return false, nil
	}
	u, ok := m.users[p.UserID]
	if !ok {
		return false, domain.NotFoundf("user %s", p.UserID)
	}
	u.Credits = u.Credits.Add(p.Amount)
	if p.Kind == domain.PayoutWin {
		u.EarnedCredits = u.EarnedCredits.Add(p.Amount)
		u.LifetimeEarnedCredits = u.LifetimeEarnedCredits.Add(p.Amount)
	}
	m.payouts[key] = p
	return true, nil
}

// Payouts devolve os créditos feitos para um wager, útil em testes e auditoria
func (m *Memory) Payouts(wagerID string) []domain.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payout
	for _, p := range m.payouts {
		if p.WagerID == wagerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// --- Wagers ---

func cloneWager(w *domain.Wager) *domain.Wager {
	cp := *w
	cp.Bets = append([]string(nil), w.Bets...)
	if w.AgreeIsWinner != nil {
		v := *w.AgreeIsWinner
		cp.AgreeIsWinner = &v
	}
	if w.Predicate.Compare != nil {
		c := *w.Predicate.Compare
		cp.Predicate.Compare = &c
	}
	if w.Predicate.Flag != nil {
		f := *w.Predicate.Flag
		cp.Predicate.Flag = &f
	}
	return &cp
}

func (m *Memory) CreateWager(_ context.Context, w *domain.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.wagers[w.ID]; exists {
		return domain.Validationf("wager %s already exists", w.ID)
	}
	m.wagers[w.ID] = cloneWager(w)
	return nil
}

func (m *Memory) GetWager(_ context.Context, id string) (*domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return nil, domain.NotFoundf("wager %s", id)
	}
	return cloneWager(w), nil
}

func (m *Memory) listWagers(keep func(*domain.Wager) bool) []*domain.Wager {
	var out []*domain.Wager
	for _, w := range m.wagers {
		if keep(w) {
			out = append(out, cloneWager(w))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) ListWagersByEvent(_ context.Context, ref domain.EventRef) ([]*domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listWagers(func(w *domain.Wager) bool { return w.EventRef == ref }), nil
}

func (m *Memory) ListWagersByStatus(_ context.Context, status domain.WagerStatus) ([]*domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listWagers(func(w *domain.Wager) bool { return w.Status == status }), nil
}

func (m *Memory) ListUnpaidEndedWagers(_ context.Context) ([]*domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listWagers(func(w *domain.Wager) bool {
		return w.Status == domain.WagerEnded && !w.PaidOut && w.ReviewReason == ""
	}), nil
}

func (m *Memory) ListBets(_ context.Context, wagerID string) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[wagerID]
	if !ok {
		return nil, domain.NotFoundf("wager %s", wagerID)
	}
	out := make([]domain.Bet, 0, len(w.Bets))
	for _, id := range w.Bets {
		out = append(out, m.bets[id])
	}
	return out, nil
}

func (m *Memory) TransitionWager(_ context.Context, id string, from, to domain.WagerStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return false, domain.NotFoundf("wager %s", id)
	}
	if w.Status != from || !from.CanMoveTo(to) {
		return false, nil
	}
	w.Status = to
	return true, nil
}

func (m *Memory) EndWager(_ context.Context, id string, result domain.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return false, domain.NotFoundf("wager %s", id)
	}
	if w.Status == domain.WagerEnded {
		return false, nil
	}
	w.Status = domain.WagerEnded
	w.Result = result
	if result != domain.ResultVoid {
		agree := result == domain.ResultAgree
		w.AgreeIsWinner = &agree
	}
	return true, nil
}

func (m *Memory) MarkPaidOut(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return domain.NotFoundf("wager %s", id)
	}
	w.PaidOut = true
	return nil
}

func (m *Memory) FlagForReview(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return domain.NotFoundf("wager %s", id)
	}
	w.ReviewReason = reason
	return nil
}

// --- Events ---

func (m *Memory) GetTeam(_ context.Context, id string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, domain.NotFoundf("team %s", id)
	}
	cp := *t
	cp.Players = append([]string(nil), t.Players...)
	return &cp, nil
}

func (m *Memory) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, domain.NotFoundf("player %s", id)
	}
	cp := *p
	return &cp, nil
}

func cloneMatch(x *domain.Match) *domain.Match {
	cp := *x
	cp.Outcome = x.Outcome.Clone()
	return &cp
}

func cloneSeries(x *domain.Series) *domain.Series {
	cp := *x
	cp.Matches = append([]string(nil), x.Matches...)
	if x.Wins != nil {
		cp.Wins = make(map[string]int, len(x.Wins))
		for k, v := range x.Wins {
			cp.Wins[k] = v
		}
	}
	cp.Outcome = x.Outcome.Clone()
	return &cp
}

func cloneTournament(x *domain.Tournament) *domain.Tournament {
	cp := *x
	cp.Series = append([]string(nil), x.Series...)
	cp.Outcome = x.Outcome.Clone()
	return &cp
}

func cloneSeason(x *domain.Season) *domain.Season {
	cp := *x
	cp.Tournaments = append([]string(nil), x.Tournaments...)
	cp.Outcome = x.Outcome.Clone()
	return &cp
}

func (m *Memory) GetMatch(_ context.Context, id string) (*domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.matches[id]
	if !ok {
		return nil, domain.NotFoundf("match %s", id)
	}
	return cloneMatch(x), nil
}

func (m *Memory) GetSeries(_ context.Context, id string) (*domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.series[id]
	if !ok {
		return nil, domain.NotFoundf("series %s", id)
	}
	return cloneSeries(x), nil
}

func (m *Memory) GetTournament(_ context.Context, id string) (*domain.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.tournaments[id]
	if !ok {
		return nil, domain.NotFoundf("tournament %s", id)
	}
	return cloneTournament(x), nil
}

func (m *Memory) GetSeason(_ context.Context, id string) (*domain.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.seasons[id]
	if !ok {
		return nil, domain.NotFoundf("season %s", id)
	}
	return cloneSeason(x), nil
}

func (m *Memory) SaveTeam(_ context.Context, t *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.Players = append([]string(nil), t.Players...)
	m.teams[t.ID] = &cp
	return nil
}

func (m *Memory) SavePlayer(_ context.Context, p *domain.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *Memory) SaveMatch(_ context.Context, x *domain.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[x.ID] = cloneMatch(x)
	return nil
}

func (m *Memory) SaveSeries(_ context.Context, x *domain.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[x.ID] = cloneSeries(x)
	return nil
}

func (m *Memory) SaveTournament(_ context.Context, x *domain.Tournament) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournaments[x.ID] = cloneTournament(x)
	return nil
}

func (m *Memory) SaveSeason(_ context.Context, x *domain.Season) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seasons[x.ID] = cloneSeason(x)
	return nil
}

func (m *Memory) StartEvent(_ context.Context, ref domain.EventRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var status *domain.EventStatus
	switch ref.Level {
	case domain.LevelMatch:
		if x, ok := m.matches[ref.ID]; ok {
			status = &x.Status
		}
	case domain.LevelSeries:
		if x, ok := m.series[ref.ID]; ok {
			status = &x.Status
		}
	case domain.LevelTournament:
		if x, ok := m.tournaments[ref.ID]; ok {
			status = &x.Status
		}
	case domain.LevelSeason:
		if x, ok := m.seasons[ref.ID]; ok {
			status = &x.Status
		}
	default:
		return domain.Validationf("unknown event level %q", ref.Level)
	}
	if status == nil {
		return domain.NotFoundf("event %s", ref)
	}
	if *status == domain.EventEnded {
		return domain.InvalidTransitionf("event %s already ended", ref)
	}
	*status = domain.EventStarted
	return nil
}

func (m *Memory) EndMatch(_ context.Context, x *domain.Match) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.matches[x.ID]
	if !ok {
		return false, domain.NotFoundf("match %s", x.ID)
	}
	if cur.Status == domain.EventEnded {
		return false, nil
	}
	cp := cloneMatch(x)
	cp.Status = domain.EventEnded
	m.matches[x.ID] = cp
	return true, nil
}

func (m *Memory) EndSeries(_ context.Context, x *domain.Series) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.series[x.ID]
	if !ok {
		return false, domain.NotFoundf("series %s", x.ID)
	}
	if cur.Status == domain.EventEnded {
		return false, nil
	}
	cp := cloneSeries(x)
	cp.Status = domain.EventEnded
	m.series[x.ID] = cp
	return true, nil
}

func (m *Memory) EndTournament(_ context.Context, x *domain.Tournament) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tournaments[x.ID]
	if !ok {
		return false, domain.NotFoundf("tournament %s", x.ID)
	}
	if cur.Status == domain.EventEnded {
		return false, nil
	}
	cp := cloneTournament(x)
	cp.Status = domain.EventEnded
	m.tournaments[x.ID] = cp
	return true, nil
}

func (m *Memory) EndSeason(_ context.Context, x *domain.Season) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.seasons[x.ID]
	if !ok {
		return false, domain.NotFoundf("season %s", x.ID)
	}
	if cur.Status == domain.EventEnded {
		return false, nil
	}
	cp := cloneSeason(x)
	cp.Status = domain.EventEnded
	m.seasons[x.ID] = cp
	return true, nil
}

func (m *Memory) SaveSeriesProgress(_ context.Context, x *domain.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.series[x.ID]
	if !ok {
		return domain.NotFoundf("series %s", x.ID)
	}
	if cur.Status == domain.EventEnded {
		return domain.InvalidTransitionf("series %s already ended", x.ID)
	}
	next := cloneSeries(cur)
	next.Wins = cloneSeries(x).Wins
	next.OvertimeCount = x.OvertimeCount
	if next.FirstBlood == "" {
		next.FirstBlood = x.FirstBlood
	}
	next.Outcome = x.Outcome.Clone()
	m.series[x.ID] = next
	return nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/store"
)

// recorder guarda os tópicos publicados
type recorder struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (r *recorder) Publish(_ context.Context, topic string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// flakyStore falha as próximas N chamadas de um método, simulando queda no meio da liquidação
type flakyStore struct {
	*store.Memory
	mu   sync.Mutex
	fail map[string]int
}

var errCrash = errors.New("connection reset")

func (f *flakyStore) failNext(method string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = n
}

func (f *flakyStore) trip(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[method] > 0 {
		f.fail[method]--
		return errCrash
	}
	return nil
}

func (f *flakyStore) CreditPayout(ctx context.Context, p domain.Payout) (bool, error) {
	if err := f.trip("CreditPayout"); err != nil {
		return false, err
	}
	return f.Memory.CreditPayout(ctx, p)
}

func (f *flakyStore) EndWager(ctx context.Context, id string, result domain.Result) (bool, error) {
	if err := f.trip("EndWager"); err != nil {
		return false, err
	}
	return f.Memory.EndWager(ctx, id, result)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed monta dois times, uma série Bo3 com três partidas, um torneio e uma temporada
func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		must(st.SaveUser(ctx, &domain.User{ID: id, Credits: d("100")}))
	}
	must(st.SaveTeam(ctx, &domain.Team{ID: "A", Name: "Alpha", Players: []string{"a1", "a2"}}))
	must(st.SaveTeam(ctx, &domain.Team{ID: "B", Name: "Beta", Players: []string{"b1", "b2"}}))
	must(st.SavePlayer(ctx, &domain.Player{ID: "a1", TeamRef: "A", Name: "ace"}))
	must(st.SavePlayer(ctx, &domain.Player{ID: "a2", TeamRef: "A", Name: "atlas"}))
	must(st.SavePlayer(ctx, &domain.Player{ID: "b1", TeamRef: "B", Name: "blaze"}))
	must(st.SavePlayer(ctx, &domain.Player{ID: "b2", TeamRef: "B", Name: "bolt"}))
	must(st.SaveSeason(ctx, &domain.Season{ID: "se1", Tournaments: []string{"t1"}, Status: domain.EventScheduled}))
	must(st.SaveTournament(ctx, &domain.Tournament{ID: "t1", Series: []string{"s1"}, SeasonRef: "se1", Status: domain.EventScheduled}))
	must(st.SaveSeries(ctx, &domain.Series{
		ID: "s1", Teams: [2]string{"A", "B"}, BestOf: 3, TournamentRef: "t1",
		Matches: []string{"m1", "m2", "m3"}, Status: domain.EventScheduled,
	}))
	for _, id := range []string{"m1", "m2", "m3"} {
		must(st.SaveMatch(ctx, &domain.Match{ID: id, Teams: [2]string{"A", "B"}, SeriesRef: "s1", Status: domain.EventScheduled}))
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.Memory, *recorder) {
	t.Helper()
	st := store.NewMemory()
	seed(t, st)
	rec := &recorder{}
	e := NewEngine(zap.NewNop(), st, rec)
	e.Retry.Backoff = 0
	return e, st, rec
}

func ref(level domain.EventLevel, id string) domain.EventRef {
	return domain.EventRef{Level: level, ID: id}
}

func mustWager(t *testing.T, e *Engine, ev domain.EventRef, p domain.Predicate) *domain.Wager {
	t.Helper()
	w, err := e.CreateWager(context.Background(), CreateWagerInput{EventRef: ev, WagerType: "test", Predicate: p})
	if err != nil {
		t.Fatalf("CreateWager: %v", err)
	}
	return w
}

func mustBet(t *testing.T, e *Engine, user, wagerID string, side domain.Side, credits string) {
	t.Helper()
	_, err := e.PlaceBet(context.Background(), PlaceBetInput{UserID: user, WagerID: wagerID, Side: side, Credits: d(credits)})
	if err != nil {
		t.Fatalf("PlaceBet(%s, %s): %v", user, credits, err)
	}
}

func balance(t *testing.T, st store.Store, user string) decimal.Decimal {
	t.Helper()
	u, err := st.GetUser(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	return u.Credits
}

func wantBalance(t *testing.T, st store.Store, user, want string) {
	t.Helper()
	if got := balance(t, st, user); !got.Equal(d(want)) {
		t.Fatalf("%s balance = %s, want %s", user, got, want)
	}
}

// resultados em que Alpha vence por 3 a 1
func alphaWins() []domain.PlayerResult {
	return []domain.PlayerResult{
		{Name: "ace", Stats: domain.Stats{domain.AttrGoals: 2, domain.AttrScore: 520}},
		{Name: "atlas", Stats: domain.Stats{domain.AttrGoals: 1, domain.AttrScore: 310}},
		{Name: "blaze", Stats: domain.Stats{domain.AttrGoals: 1, domain.AttrScore: 400}},
		{Name: "bolt", Stats: domain.Stats{domain.AttrGoals: 0, domain.AttrScore: 120}},
	}
}

func tiedResults() []domain.PlayerResult {
	return []domain.PlayerResult{
		{Name: "ace", Stats: domain.Stats{domain.AttrGoals: 2, domain.AttrScore: 400}},
		{Name: "blaze", Stats: domain.Stats{domain.AttrGoals: 2, domain.AttrScore: 400}},
	}
}

func (f *flakyStore) EndSeries(ctx context.Context, s *domain.Series) (bool, error) {
	if err := f.trip("EndSeries"); err != nil {
		return false, err
	}
	return f.Memory.EndSeries(ctx, s)
}

func (f *flakyStore) EndTournament(ctx context.Context, t *domain.Tournament) (bool, error) {
	if err := f.trip("EndTournament"); err != nil {
		return false, err
	}
	return f.Memory.EndTournament(ctx, t)
}

func newFlakyEngine(t *testing.T) (*Engine, *flakyStore) {
	t.Helper()
	fs := &flakyStore{Memory: store.NewMemory(), fail: map[string]int{}}
	seed(t, fs)
	e := NewEngine(zap.NewNop(), fs, &recorder{})
	e.Retry.Backoff = 0
	return e, fs
}

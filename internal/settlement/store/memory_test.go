package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newWager(t *testing.T, st *Memory, id string, status domain.WagerStatus) {
	t.Helper()
	err := st.CreateWager(context.Background(), &domain.Wager{
		ID:        id,
		Status:    status,
		WagerType: "Match Winner",
		EventRef:  domain.EventRef{Level: domain.LevelMatch, ID: "m1"},
		Predicate: domain.WinnerEquals("A"),
	})
	if err != nil {
		t.Fatalf("CreateWager(%s): %v", id, err)
	}
}

func TestConcurrentBetsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	if err := st.SaveUser(ctx, &domain.User{ID: "u1", Credits: dec("100")}); err != nil {
		t.Fatal(err)
	}
	newWager(t, st, "w1", domain.WagerBettable)
	newWager(t, st, "w2", domain.WagerBettable)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, wagerID := range []string{"w1", "w2"} {
		wg.Add(1)
		go func(i int, wagerID string) {
			defer wg.Done()
			_, errs[i] = st.PlaceBet(ctx, &domain.Bet{
				ID: fmt.Sprintf("b%d", i), UserID: "u1", WagerID: wagerID,
				Side: domain.SideAgree, Credits: dec("60"),
			})
		}(i, wagerID)
	}
	wg.Wait()

	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("ok=%d insufficient=%d, want 1/1", ok, insufficient)
	}
	u, _ := st.GetUser(ctx, "u1")
	if !u.Credits.Equal(dec("40")) {
		t.Fatalf("balance = %s, want 40", u.Credits)
	}

	// o pool só cresce no wager onde o débito passou
	total := decimal.Zero
	for _, id := range []string{"w1", "w2"} {
		w, _ := st.GetWager(ctx, id)
		total = total.Add(w.AgreeCreditsBet)
	}
	if !total.Equal(dec("60")) {
		t.Fatalf("pools = %s, want 60", total)
	}
}

func TestPlaceBetKeepsPoolConsistent(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	for i := 0; i < 20; i++ {
		_ = st.SaveUser(ctx, &domain.User{ID: fmt.Sprintf("u%d", i), Credits: dec("10")})
	}
	newWager(t, st, "w1", domain.WagerBettable)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := domain.SideAgree
			if i%3 == 0 {
				side = domain.SideDisagree
			}
			_, err := st.PlaceBet(ctx, &domain.Bet{
				ID: fmt.Sprintf("b%d", i), UserID: fmt.Sprintf("u%d", i), WagerID: "w1",
				Side: side, Credits: dec("2.5"),
			})
			if err != nil {
				t.Errorf("PlaceBet: %v", err)
			}
		}(i)
	}
	wg.Wait()

	w, _ := st.GetWager(ctx, "w1")
	bets, err := st.ListBets(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	agree, disagree := decimal.Zero, decimal.Zero
	agreeN, disagreeN := 0, 0
	for _, b := range bets {
		if b.Side == domain.SideAgree {
			agree, agreeN = agree.Add(b.Credits), agreeN+1
		} else {
			disagree, disagreeN = disagree.Add(b.Credits), disagreeN+1
		}
	}
	if !agree.Equal(w.AgreeCreditsBet) || !disagree.Equal(w.DisagreeCreditsBet) {
		t.Fatalf("pool %s/%s != bets %s/%s", w.AgreeCreditsBet, w.DisagreeCreditsBet, agree, disagree)
	}
	if agreeN != w.AgreeBetsCount || disagreeN != w.DisagreeBetsCount || len(w.Bets) != 20 {
		t.Fatalf("counts %d/%d bets %d", w.AgreeBetsCount, w.DisagreeBetsCount, len(w.Bets))
	}
}

func TestPlaceBetRequiresBettable(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	_ = st.SaveUser(ctx, &domain.User{ID: "u1", Credits: dec("50")})
	newWager(t, st, "w1", domain.WagerOngoing)

	_, err := st.PlaceBet(ctx, &domain.Bet{ID: "b1", UserID: "u1", WagerID: "w1", Side: domain.SideAgree, Credits: dec("5")})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want InvalidStateTransition", err)
	}
	u, _ := st.GetUser(ctx, "u1")
	if !u.Credits.Equal(dec("50")) {
		t.Fatalf("rejected bet debited the user: %s", u.Credits)
	}

	_, err = st.PlaceBet(ctx, &domain.Bet{ID: "b2", UserID: "nobody", WagerID: "w1", Side: domain.SideAgree, Credits: dec("5")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestCreditPayoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	_ = st.SaveUser(ctx, &domain.User{ID: "u1", Credits: dec("0")})

	p := domain.Payout{WagerID: "w1", UserID: "u1", Amount: dec("30"), Kind: domain.PayoutWin}
	for i, want := range []bool{true, false} {
		applied, err := st.CreditPayout(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if applied != want {
			t.Fatalf("call %d applied = %v", i, applied)
		}
	}
	u, _ := st.GetUser(ctx, "u1")
	if !u.Credits.Equal(dec("30")) || !u.EarnedCredits.Equal(dec("30")) || !u.LifetimeEarnedCredits.Equal(dec("30")) {
		t.Fatalf("user = %+v", u)
	}

	// estorno devolve saldo sem mexer nos ganhos
	_, _ = st.CreditPayout(ctx, domain.Payout{WagerID: "w2", UserID: "u1", Amount: dec("5"), Kind: domain.PayoutRefund})
	u, _ = st.GetUser(ctx, "u1")
	if !u.Credits.Equal(dec("35")) || !u.EarnedCredits.Equal(dec("30")) {
		t.Fatalf("after refund user = %+v", u)
	}
	if got := st.Payouts("w1"); len(got) != 1 {
		t.Fatalf("payouts for w1 = %d", len(got))
	}
}

func TestWagerTransitions(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	newWager(t, st, "w1", domain.WagerBettable)

	if ok, _ := st.TransitionWager(ctx, "w1", domain.WagerCreated, domain.WagerBettable); ok {
		t.Fatal("transition from wrong status applied")
	}
	if ok, _ := st.TransitionWager(ctx, "w1", domain.WagerBettable, domain.WagerOngoing); !ok {
		t.Fatal("bettable -> ongoing rejected")
	}
	ended, err := st.EndWager(ctx, "w1", domain.ResultAgree)
	if err != nil || !ended {
		t.Fatalf("EndWager = %v, %v", ended, err)
	}
	if again, _ := st.EndWager(ctx, "w1", domain.ResultDisagree); again {
		t.Fatal("wager ended twice")
	}
	w, _ := st.GetWager(ctx, "w1")
	if w.Result != domain.ResultAgree || w.AgreeIsWinner == nil || !*w.AgreeIsWinner {
		t.Fatalf("result = %s agreeIsWinner = %v", w.Result, w.AgreeIsWinner)
	}

	unpaid, _ := st.ListUnpaidEndedWagers(ctx)
	if len(unpaid) != 1 {
		t.Fatalf("unpaid = %d", len(unpaid))
	}
	_ = st.MarkPaidOut(ctx, "w1")
	if unpaid, _ = st.ListUnpaidEndedWagers(ctx); len(unpaid) != 0 {
		t.Fatalf("paid wager still listed")
	}
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	_ = st.SaveSeries(ctx, &domain.Series{ID: "s1", Teams: [2]string{"A", "B"}, BestOf: 3})
	_ = st.SaveMatch(ctx, &domain.Match{ID: "m1", Teams: [2]string{"A", "B"}, SeriesRef: "s1"})

	if err := st.StartEvent(ctx, domain.EventRef{Level: domain.LevelMatch, ID: "m1"}); err != nil {
		t.Fatal(err)
	}
	if err := st.StartEvent(ctx, domain.EventRef{Level: domain.LevelMatch, ID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing match: %v", err)
	}

	m, _ := st.GetMatch(ctx, "m1")
	m.WinnerID = "A"
	if ended, _ := st.EndMatch(ctx, m); !ended {
		t.Fatal("first EndMatch did not apply")
	}
	m.WinnerID = "B"
	if ended, _ := st.EndMatch(ctx, m); ended {
		t.Fatal("second EndMatch applied")
	}
	got, _ := st.GetMatch(ctx, "m1")
	if got.Status != domain.EventEnded || got.WinnerID != "A" {
		t.Fatalf("match = %s winner %s", got.Status, got.WinnerID)
	}
	if err := st.StartEvent(ctx, domain.EventRef{Level: domain.LevelMatch, ID: "m1"}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("start after end: %v", err)
	}

	s, _ := st.GetSeries(ctx, "s1")
	s.Wins = map[string]int{"A": 1}
	s.FirstBlood = "B"
	if err := st.SaveSeriesProgress(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.FirstBlood = "A"
	_ = st.SaveSeriesProgress(ctx, s)
	s, _ = st.GetSeries(ctx, "s1")
	if s.Wins["A"] != 1 || s.FirstBlood != "B" {
		t.Fatalf("series progress = %v first blood %q", s.Wins, s.FirstBlood)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	fixtures := `{
		"users": [{"id": "u1", "credits": "100"}],
		"teams": [{"id": "A", "name": "Alpha", "players": ["a1"]}],
		"players": [{"id": "a1", "teamRef": "A", "name": "ace"}],
		"series": [{"id": "s1", "teams": ["A", "B"], "bestOf": 3, "matches": ["m1"]}],
		"matches": [{"id": "m1", "teams": ["A", "B"], "seriesRef": "s1", "status": "scheduled"}]
	}`
	if err := Seed(ctx, st, strings.NewReader(fixtures)); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	u, err := st.GetUser(ctx, "u1")
	if err != nil || !u.Credits.Equal(dec("100")) {
		t.Fatalf("user = %+v err %v", u, err)
	}
	m, err := st.GetMatch(ctx, "m1")
	if err != nil || m.SeriesRef != "s1" || m.Teams[1] != "B" {
		t.Fatalf("match = %+v err %v", m, err)
	}

	if err := Seed(ctx, st, strings.NewReader("{")); err == nil {
		t.Fatal("malformed fixtures accepted")
	}
}

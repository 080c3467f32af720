package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/topics"
)

func TestMatchConcludedPaysProportionally(t *testing.T) {
	e, st, rec := newTestEngine(t)
	ctx := context.Background()
	settled := map[domain.Result]int{}
	e.Parallelism = 1
	e.Hooks.OnWagerSettled = func(r domain.Result) { settled[r]++ }

	winner := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", winner.ID, domain.SideAgree, "20")
	mustBet(t, e, "u2", winner.ID, domain.SideAgree, "80")
	mustBet(t, e, "u3", winner.ID, domain.SideDisagree, "50")

	mvp := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.MVPEquals("a1"))
	mustBet(t, e, "u4", mvp.ID, domain.SideAgree, "10")
	mustBet(t, e, "u3", mvp.ID, domain.SideDisagree, "10")

	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: alphaWins(), FirstBlood: "B"})
	if err != nil {
		t.Fatalf("MatchConcluded: %v", err)
	}
	if !sum.Match.Ended || sum.Match.WinnerID != "A" || sum.Match.Score != "Alpha:3 - Beta:1" {
		t.Fatalf("match summary = %+v", sum.Match)
	}
	if len(sum.Match.Wagers) != 2 {
		t.Fatalf("settled wagers = %d", len(sum.Match.Wagers))
	}
	for _, ws := range sum.Match.Wagers {
		if ws.Result != domain.ResultAgree || ws.Error != "" || ws.Review != "" {
			t.Fatalf("wager settlement = %+v", ws)
		}
	}

	// 20 + 50*(20/100) = 30
	wantBalance(t, st, "u1", "110")
	wantBalance(t, st, "u2", "140")
	wantBalance(t, st, "u3", "40")
	wantBalance(t, st, "u4", "110")
	u1, _ := st.GetUser(ctx, "u1")
	if !u1.EarnedCredits.Equal(d("30")) || !u1.LifetimeEarnedCredits.Equal(d("30")) {
		t.Fatalf("u1 earnings = %s/%s", u1.EarnedCredits, u1.LifetimeEarnedCredits)
	}

	w, _ := st.GetWager(ctx, winner.ID)
	if w.Status != domain.WagerEnded || !w.PaidOut || w.AgreeIsWinner == nil || !*w.AgreeIsWinner {
		t.Fatalf("wager = %+v", w)
	}
	if settled[domain.ResultAgree] != 2 {
		t.Fatalf("settled hook = %v", settled)
	}
	if rec.count(topics.WagerSettled) != 2 || rec.count(topics.EventConcluded) != 1 {
		t.Fatalf("published settled=%d concluded=%d", rec.count(topics.WagerSettled), rec.count(topics.EventConcluded))
	}

	// série Bo3 segue aberta depois de uma partida
	if sum.Series == nil || sum.Series.Ended || sum.Series.Score != "Alpha:1 - Beta:0" {
		t.Fatalf("series summary = %+v", sum.Series)
	}
}

func TestMatchConcludedTieRefunds(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	w := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", w.ID, domain.SideAgree, "30")
	mustBet(t, e, "u2", w.ID, domain.SideDisagree, "20")

	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: tiedResults()})
	if err != nil {
		t.Fatalf("MatchConcluded: %v", err)
	}
	if sum.Match.WinnerID != "" || sum.Match.Wagers[0].Result != domain.ResultVoid {
		t.Fatalf("summary = %+v", sum.Match)
	}
	wantBalance(t, st, "u1", "100")
	wantBalance(t, st, "u2", "100")
	u1, _ := st.GetUser(ctx, "u1")
	if !u1.EarnedCredits.IsZero() {
		t.Fatalf("refund counted as earnings: %s", u1.EarnedCredits)
	}
	got, _ := st.GetWager(ctx, w.ID)
	if got.Result != domain.ResultVoid || !got.PaidOut || got.AgreeIsWinner != nil {
		t.Fatalf("wager = %+v", got)
	}
	s, _ := st.GetSeries(ctx, "s1")
	if s.Status == domain.EventEnded || s.Wins["A"] != 0 || s.Wins["B"] != 0 {
		t.Fatalf("tie advanced the series: %+v", s)
	}
}

func TestAbsentPlayerFlagsForReview(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	var reviews []string
	e.Hooks.OnReview = func(reason string) { reviews = append(reviews, reason) }

	w := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.MVPEquals("a2"))
	mustBet(t, e, "u1", w.ID, domain.SideAgree, "10")

	results := alphaWins()
	results = []domain.PlayerResult{results[0], results[2]} // atlas não jogou
	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: results})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Match.Wagers[0].Review == "" {
		t.Fatalf("settlement = %+v", sum.Match.Wagers[0])
	}
	got, _ := st.GetWager(ctx, w.ID)
	if got.Status != domain.WagerOngoing || got.ReviewReason == "" || got.PaidOut {
		t.Fatalf("wager = %+v", got)
	}
	wantBalance(t, st, "u1", "90")
	if len(reviews) != 1 || reviews[0] != "predicate_evaluation" {
		t.Fatalf("reviews = %v", reviews)
	}

	// a recuperação não mexe em wagers em revisão
	rep, err := e.Recover(ctx)
	if err != nil || rep.Settled != 0 {
		t.Fatalf("recover = %+v, %v", rep, err)
	}
}

func TestEmptyWinningPool(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	onlyLosers := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", onlyLosers.ID, domain.SideDisagree, "10")
	noBets := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.FirstBloodEquals("A"))

	if _, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: alphaWins(), FirstBlood: "A"}); err != nil {
		t.Fatal(err)
	}
	w, _ := st.GetWager(ctx, onlyLosers.ID)
	if w.Status != domain.WagerEnded || w.PaidOut || w.ReviewReason == "" {
		t.Fatalf("wager without winners = %+v", w)
	}
	wantBalance(t, st, "u1", "90")

	w, _ = st.GetWager(ctx, noBets.ID)
	if !w.PaidOut || w.Result != domain.ResultAgree {
		t.Fatalf("wager without bets = %+v", w)
	}
	if rep, _ := e.Recover(ctx); rep.Repaid != 0 {
		t.Fatalf("flagged wager repaid: %+v", rep)
	}
}

func TestMatchConcludedAgainDoesNotResettle(t *testing.T) {
	e, st, rec := newTestEngine(t)
	ctx := context.Background()
	w := mustWager(t, e, ref(domain.LevelMatch, "m1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", w.ID, domain.SideAgree, "10")
	mustBet(t, e, "u2", w.ID, domain.SideDisagree, "10")

	in := MatchConcludedInput{MatchID: "m1", Results: alphaWins()}
	if _, err := e.MatchConcluded(ctx, in); err != nil {
		t.Fatal(err)
	}
	// resultados diferentes não substituem o que foi gravado
	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: tiedResults()})
	if err != nil {
		t.Fatalf("second conclusion: %v", err)
	}
	if !sum.Resumed || sum.Match.WinnerID != "A" || len(sum.Match.Wagers) != 0 {
		t.Fatalf("second summary = %+v", sum.Match)
	}
	wantBalance(t, st, "u1", "110")
	if got := st.Payouts(w.ID); len(got) != 1 {
		t.Fatalf("payouts = %+v", got)
	}
	if rec.count(topics.EventConcluded) != 1 {
		t.Fatalf("event.concluded = %d, want 1", rec.count(topics.EventConcluded))
	}
}

func TestMatchConclusionClosesParentWagers(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	series := mustWager(t, e, ref(domain.LevelSeries, "s1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", series.ID, domain.SideAgree, "10")
	tournament := mustWager(t, e, ref(domain.LevelTournament, "t1"), domain.WinnerEquals("A"))
	season := mustWager(t, e, ref(domain.LevelSeason, "se1"), domain.WinnerEquals("B"))

	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: alphaWins()})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Series.Ended {
		t.Fatal("series ended after one match")
	}
	for _, id := range []string{series.ID, tournament.ID, season.ID} {
		w, _ := st.GetWager(ctx, id)
		if w.Status != domain.WagerOngoing {
			t.Fatalf("wager %s on %s = %s, want ongoing", id, w.EventRef, w.Status)
		}
		_, err := e.PlaceBet(ctx, PlaceBetInput{UserID: "u2", WagerID: id, Side: domain.SideDisagree, Credits: d("5")})
		if !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("bet on %s after m1 result: err = %v", w.EventRef, err)
		}
	}
	wantBalance(t, st, "u2", "100")

	s, _ := st.GetSeries(ctx, "s1")
	tr, _ := st.GetTournament(ctx, "t1")
	se, _ := st.GetSeason(ctx, "se1")
	if s.Status != domain.EventStarted || tr.Status != domain.EventStarted || se.Status != domain.EventStarted {
		t.Fatalf("statuses = %s/%s/%s", s.Status, tr.Status, se.Status)
	}

	// série em andamento não aceita wager novo aberto
	if _, err := e.CreateWager(ctx, CreateWagerInput{
		EventRef: ref(domain.LevelSeries, "s1"), WagerType: "late", Predicate: domain.WinnerEquals("B"),
	}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("wager on started series: err = %v", err)
	}
}

func TestMatchConcludedRejectsBadInput(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	var cascades []error
	e.Hooks.OnCascade = func(_ time.Duration, err error) { cascades = append(cascades, err) }

	if _, err := e.MatchConcluded(ctx, MatchConcludedInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty match id: %v", err)
	}
	if _, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m9"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown match: %v", err)
	}
	bad := []domain.PlayerResult{{Name: "stranger", Stats: domain.Stats{domain.AttrGoals: 1}}}
	if _, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown player: %v", err)
	}
	m, _ := st.GetMatch(ctx, "m1")
	if m.Status == domain.EventEnded {
		t.Fatal("rejected conclusion ended the match")
	}
	if len(cascades) != 3 || cascades[0] == nil {
		t.Fatalf("cascade hook calls = %v", cascades)
	}
}

func TestSeriesDecidedBeforeLastMatch(t *testing.T) {
	e, st, rec := newTestEngine(t)
	ctx := context.Background()
	winner := mustWager(t, e, ref(domain.LevelSeries, "s1"), domain.WinnerEquals("A"))
	mustBet(t, e, "u1", winner.ID, domain.SideAgree, "10")
	mustBet(t, e, "u2", winner.ID, domain.SideDisagree, "10")
	overtime := mustWager(t, e, ref(domain.LevelSeries, "s1"),
		domain.Compare(domain.OpExactly, domain.Target{Kind: domain.TargetEvent}, domain.AttrOvertimeCount, 1))
	mustBet(t, e, "u3", overtime.ID, domain.SideAgree, "5")
	mustBet(t, e, "u4", overtime.ID, domain.SideDisagree, "5")

	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m1", Results: alphaWins(), FirstBlood: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Series.Ended {
		t.Fatal("series ended after one match")
	}

	sum, err = e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m2", Results: alphaWins(), FirstBlood: "A", WentToOvertime: true})
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Series.Ended || sum.Series.WinnerID != "A" || sum.Series.Score != "Alpha:2 - Beta:0" {
		t.Fatalf("series summary = %+v", sum.Series)
	}
	if len(sum.Series.Wagers) != 2 {
		t.Fatalf("series wagers settled = %d", len(sum.Series.Wagers))
	}
	wantBalance(t, st, "u1", "110")
	wantBalance(t, st, "u3", "105")

	s, _ := st.GetSeries(ctx, "s1")
	if s.Status != domain.EventEnded || s.FirstBlood != "B" || s.OvertimeCount != 1 {
		t.Fatalf("series = %+v", s)
	}
	if rec.count(topics.EventConcluded) != 3 {
		t.Fatalf("event.concluded = %d, want 3", rec.count(topics.EventConcluded))
	}

	// partida restante não reabre a série
	sum, err = e.MatchConcluded(ctx, MatchConcludedInput{MatchID: "m3", Results: tiedResults()})
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Series.Ended || sum.Series.Error != "" || len(sum.Series.Wagers) != 0 {
		t.Fatalf("series after decision = %+v", sum.Series)
	}
}

func TestDeclaredTournamentAndSeason(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	goals := mustWager(t, e, ref(domain.LevelTournament, "t1"),
		domain.Compare(domain.OpMore, domain.Target{Kind: domain.TargetEvent}, domain.AttrGoals, 2))
	mustBet(t, e, "u1", goals.ID, domain.SideAgree, "10")
	mustBet(t, e, "u2", goals.ID, domain.SideDisagree, "10")
	champion := mustWager(t, e, ref(domain.LevelSeason, "se1"), domain.WinnerEquals("B"))
	mustBet(t, e, "u3", champion.ID, domain.SideAgree, "10")
	mustBet(t, e, "u4", champion.ID, domain.SideDisagree, "10")

	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{
		MatchID:       "m1",
		Results:       alphaWins(),
		EndTournament: &domain.Declaration{WinnerID: "A", LoserID: "B"},
		EndSeason:     &domain.Declaration{WinnerID: "A"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tournament == nil || !sum.Tournament.Ended || sum.Tournament.Wagers[0].Result != domain.ResultAgree {
		t.Fatalf("tournament summary = %+v", sum.Tournament)
	}
	if sum.Season == nil || !sum.Season.Ended || sum.Season.Wagers[0].Result != domain.ResultDisagree {
		t.Fatalf("season summary = %+v", sum.Season)
	}
	wantBalance(t, st, "u1", "110")
	wantBalance(t, st, "u2", "90")
	wantBalance(t, st, "u3", "90")
	wantBalance(t, st, "u4", "110")

	tr, _ := st.GetTournament(ctx, "t1")
	if tr.Status != domain.EventEnded || tr.WinnerID != "A" || tr.LoserID != "B" {
		t.Fatalf("tournament = %+v", tr)
	}
	se, _ := st.GetSeason(ctx, "se1")
	if se.Status != domain.EventEnded || se.WinnerID != "A" {
		t.Fatalf("season = %+v", se)
	}

	// torneio encerrado não aceita nova declaração
	sum, err = e.MatchConcluded(ctx, MatchConcludedInput{
		MatchID: "m2", Results: alphaWins(), EndTournament: &domain.Declaration{WinnerID: "B"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tournament.Error == "" {
		t.Fatal("second tournament declaration accepted")
	}
}

func TestInvalidDeclarationDoesNotEndTournament(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	sum, err := e.MatchConcluded(ctx, MatchConcludedInput{
		MatchID: "m1", Results: alphaWins(), EndTournament: &domain.Declaration{WinnerID: "A", LoserID: "A"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tournament.Error == "" || sum.Tournament.Ended {
		t.Fatalf("tournament summary = %+v", sum.Tournament)
	}
	if !sum.Match.Ended {
		t.Fatal("match conclusion lost because of tournament step")
	}
	tr, _ := st.GetTournament(ctx, "t1")
	if tr.Status == domain.EventEnded {
		t.Fatal("tournament ended with invalid declaration")
	}
}

func TestMatchConcludedEventRoundTrip(t *testing.T) {
	in := MatchConcludedInput{
		MatchID:       "m1",
		Results:       alphaWins(),
		FirstBlood:    "A",
		EndTournament: &domain.Declaration{WinnerID: "A", LoserID: "B"},
	}
	got := MatchConcludedFromEvent(in.Event())
	if got.MatchID != "m1" || len(got.Results) != 4 || got.Results[0].Stats.Get(domain.AttrGoals) != 2 {
		t.Fatalf("round trip = %+v", got)
	}
	if got.EndTournament == nil || got.EndTournament.LoserID != "B" || got.EndSeason != nil {
		t.Fatalf("declarations = %+v / %+v", got.EndTournament, got.EndSeason)
	}
}

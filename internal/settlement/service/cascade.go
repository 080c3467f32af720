package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/resolver"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/topics"
)

type MatchConcludedInput struct {
	MatchID        string                `json:"matchId"`
	Results        []domain.PlayerResult `json:"results"`
	FirstBlood     string                `json:"firstBlood"`
	WentToOvertime bool                  `json:"wentToOvertime"`
	EndTournament  *domain.Declaration   `json:"endTournament,omitempty"`
	EndSeason      *domain.Declaration   `json:"endSeason,omitempty"`
}

// LevelSummary é o resultado de um nível da cascata
type LevelSummary struct {
	Event    domain.EventRef   `json:"event"`
	Ended    bool              `json:"ended"`
	WinnerID string            `json:"winnerId,omitempty"`
	Score    string            `json:"score,omitempty"`
	Wagers   []WagerSettlement `json:"wagers,omitempty"`
	Error    string            `json:"error,omitempty"`

	err error
}

func (ls *LevelSummary) fail(err error) LevelSummary {
	ls.Error, ls.err = err.Error(), err
	return *ls
}

// Summary é o relatório de uma conclusão de partida
type Summary struct {
	MatchID    string        `json:"matchId"`
	Resumed    bool          `json:"resumed,omitempty"` // partida já estava encerrada; só os passos pendentes rodaram
	Match      LevelSummary  `json:"match"`
	Series     *LevelSummary `json:"series,omitempty"`
	Tournament *LevelSummary `json:"tournament,omitempty"`
	Season     *LevelSummary `json:"season,omitempty"`
}

// Err junta as falhas dos passos da cascata; nil quando todos foram aplicados.
// Uma nova chamada de MatchConcluded retoma os passos que falharam.
func (s *Summary) Err() error {
	var errs error
	for _, ls := range []*LevelSummary{&s.Match, s.Series, s.Tournament, s.Season} {
		if ls == nil || ls.Error == "" {
			continue
		}
		err := ls.err
		if err == nil {
			err = errors.New(ls.Error)
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", ls.Event, err))
	}
	return errs
}

// MatchConcluded encerra a partida e propaga o resultado: liquida os wagers da
// partida, avança a série e, quando declarado, encerra torneio e temporada.
// Os passos de série, torneio e temporada são independentes entre si; falhas
// ficam registradas no Summary.
//
// Chamar de novo para uma partida já encerrada não resolve nada outra vez: o
// resultado gravado é reaproveitado e os passos seguintes rodam de novo. Os
// gates de encerramento e as chaves de pagamento impedem dupla liquidação.
func (e *Engine) MatchConcluded(ctx context.Context, in MatchConcludedInput) (sum *Summary, err error) {
	start := time.Now()
	defer func() {
		if e.Hooks.OnCascade != nil {
			e.Hooks.OnCascade(time.Since(start), err)
		}
	}()

	if in.MatchID == "" {
		return nil, domain.Validationf("matchId is required")
	}
	log := e.Log.With(zap.String("match_id", in.MatchID))

	// 1. resolve e grava a partida
	m, err := e.Store.GetMatch(ctx, in.MatchID)
	if err != nil {
		return nil, err
	}
	resumed := m.Status == domain.EventEnded
	if !resumed {
		o, err := e.resolveMatch(ctx, m, in)
		if err != nil {
			return nil, err
		}
		resolver.ApplyMatchOutcome(m, o, in.WentToOvertime)

		// a partida acabou: fecha as apostas de série, torneio e temporada antes de publicar o resultado
		if _, err := e.startAncestors(ctx, domain.EventRef{Level: domain.LevelMatch, ID: m.ID}); err != nil {
			return nil, err
		}

		var ended bool
		err = e.Retry.Do(ctx, func() error {
			var err error
			ended, err = e.Store.EndMatch(ctx, m)
			return err
		})
		if err != nil {
			return nil, err
		}
		if ended {
			log.Info("match concluded", zap.String("winner", m.WinnerID), zap.String("score", m.Score))
		} else if m, err = e.Store.GetMatch(ctx, in.MatchID); err != nil {
			return nil, err
		} else {
			resumed = true
		}
	}

	sum = &Summary{MatchID: m.ID, Resumed: resumed}
	if resumed {
		if m.Outcome == nil {
			return nil, domain.InvalidTransitionf("match %s ended without a recorded outcome", m.ID)
		}
		log.Info("match already concluded, resuming cascade")
		if _, err := e.startAncestors(ctx, domain.EventRef{Level: domain.LevelMatch, ID: m.ID}); err != nil {
			return nil, err
		}
		// 2. wagers da partida que ficaram abertos
		sum.Match = e.resettleLevel(ctx, m.Outcome)
	} else {
		// 2. wagers da partida
		sum.Match = e.concludeLevel(ctx, m.Outcome)
	}

	// 3. série
	if m.SeriesRef != "" {
		ls := e.advanceSeries(ctx, m.SeriesRef)
		sum.Series = &ls
	}

	// 4. torneio
	if in.EndTournament != nil {
		ls := e.endTournament(ctx, m, *in.EndTournament)
		sum.Tournament = &ls
	}

	// 5. temporada
	if in.EndSeason != nil {
		ls := e.endSeason(ctx, m, *in.EndSeason)
		sum.Season = &ls
	}

	for _, ls := range []*LevelSummary{&sum.Match, sum.Series, sum.Tournament, sum.Season} {
		if ls != nil && ls.Error != "" {
			log.Warn("cascade step failed", zap.String("event", ls.Event.String()), zap.String("error", ls.Error))
		}
	}
	return sum, nil
}

func (e *Engine) resolveMatch(ctx context.Context, m *domain.Match, in MatchConcludedInput) (*domain.Outcome, error) {
	teams, err := e.teamPair(ctx, m.Teams)
	if err != nil {
		return nil, err
	}
	players := make(map[string]*domain.Player)
	for _, t := range teams {
		for _, id := range t.Players {
			p, err := e.Store.GetPlayer(ctx, id)
			if err != nil {
				return nil, err
			}
			players[id] = p
		}
	}
	return resolver.ResolveMatch(resolver.MatchInput{
		Match:          m,
		Teams:          teams,
		Players:        players,
		Results:        in.Results,
		FirstBlood:     in.FirstBlood,
		WentToOvertime: in.WentToOvertime,
	})
}

func (e *Engine) teamPair(ctx context.Context, ids [2]string) ([2]*domain.Team, error) {
	var out [2]*domain.Team
	for i, id := range ids {
		t, err := e.Store.GetTeam(ctx, id)
		if err != nil {
			return out, err
		}
		out[i] = t
	}
	return out, nil
}

// concludeLevel publica o encerramento e liquida os wagers do evento
func (e *Engine) concludeLevel(ctx context.Context, o *domain.Outcome) LevelSummary {
	ls := LevelSummary{Event: o.Event, Ended: true, WinnerID: o.WinnerID, Score: o.Score}
	e.publish(ctx, topics.EventConcluded, eventConcluded(o, e.Now()))

	wagers, err := e.SettleEvent(ctx, o)
	if err != nil {
		return ls.fail(err)
	}
	ls.Wagers = wagers
	return ls
}

// resettleLevel liquida o que ficou aberto de um evento já encerrado, sem republicar o encerramento
func (e *Engine) resettleLevel(ctx context.Context, o *domain.Outcome) LevelSummary {
	ls := LevelSummary{Event: o.Event, Ended: true, WinnerID: o.WinnerID, Score: o.Score}
	wagers, err := e.SettleEvent(ctx, o)
	if err != nil {
		return ls.fail(err)
	}
	ls.Wagers = wagers
	return ls
}

// advanceSeries recalcula a série a partir das partidas encerradas. Sem
// decisão, grava só o progresso; com decisão, encerra e liquida.
func (e *Engine) advanceSeries(ctx context.Context, seriesID string) LevelSummary {
	ls := LevelSummary{Event: domain.EventRef{Level: domain.LevelSeries, ID: seriesID}}
	fail := ls.fail

	s, err := e.Store.GetSeries(ctx, seriesID)
	if err != nil {
		return fail(err)
	}
	if s.Status == domain.EventEnded {
		if s.Outcome != nil {
			return e.resettleLevel(ctx, s.Outcome)
		}
		ls.Ended, ls.WinnerID = true, s.WinnerID
		return ls
	}
	teams, err := e.teamPair(ctx, s.Teams)
	if err != nil {
		return fail(err)
	}
	matches, err := e.loadMatches(ctx, s.Matches)
	if err != nil {
		return fail(err)
	}

	if !resolver.AdvanceSeries(s, teams, matches) {
		err := e.Retry.Do(ctx, func() error { return e.Store.SaveSeriesProgress(ctx, s) })
		if err != nil {
			return fail(err)
		}
		ls.Score = s.Outcome.Score
		return ls
	}

	var ended bool
	err = e.Retry.Do(ctx, func() error {
		var err error
		ended, err = e.Store.EndSeries(ctx, s)
		return err
	})
	if err != nil {
		return fail(err)
	}
	if !ended {
		ls.Ended = true
		return ls
	}
	e.Log.Info("series concluded", zap.String("series_id", s.ID), zap.String("winner", s.WinnerID))
	return e.concludeLevel(ctx, s.Outcome)
}

func (e *Engine) endTournament(ctx context.Context, m *domain.Match, decl domain.Declaration) LevelSummary {
	ls := LevelSummary{Event: domain.EventRef{Level: domain.LevelTournament}}
	fail := ls.fail

	tid, err := e.tournamentOf(ctx, m)
	if err != nil {
		return fail(err)
	}
	ls.Event.ID = tid
	t, err := e.Store.GetTournament(ctx, tid)
	if err != nil {
		return fail(err)
	}
	if t.Status == domain.EventEnded {
		// mesma declaração: retomada de uma cascata interrompida
		if t.Outcome != nil && t.WinnerID == decl.WinnerID && t.LoserID == decl.LoserID {
			return e.resettleLevel(ctx, t.Outcome)
		}
		return fail(domain.InvalidTransitionf("tournament %s already ended", tid))
	}
	if err := e.checkDeclaration(ctx, decl); err != nil {
		return fail(err)
	}
	matches, err := e.seriesMatches(ctx, t.Series)
	if err != nil {
		return fail(err)
	}

	o := resolver.ResolveDeclared(ls.Event, decl, matches)
	t.WinnerID, t.LoserID, t.Outcome = decl.WinnerID, decl.LoserID, o
	var ended bool
	err = e.Retry.Do(ctx, func() error {
		var err error
		ended, err = e.Store.EndTournament(ctx, t)
		return err
	})
	if err != nil {
		return fail(err)
	}
	if !ended {
		return fail(domain.InvalidTransitionf("tournament %s already ended", tid))
	}
	e.Log.Info("tournament concluded", zap.String("tournament_id", tid), zap.String("winner", decl.WinnerID))
	return e.concludeLevel(ctx, o)
}

func (e *Engine) endSeason(ctx context.Context, m *domain.Match, decl domain.Declaration) LevelSummary {
	ls := LevelSummary{Event: domain.EventRef{Level: domain.LevelSeason}}
	fail := ls.fail

	tid, err := e.tournamentOf(ctx, m)
	if err != nil {
		return fail(err)
	}
	t, err := e.Store.GetTournament(ctx, tid)
	if err != nil {
		return fail(err)
	}
	if t.SeasonRef == "" {
		return fail(domain.Validationf("tournament %s is not part of a season", tid))
	}
	ls.Event.ID = t.SeasonRef
	s, err := e.Store.GetSeason(ctx, t.SeasonRef)
	if err != nil {
		return fail(err)
	}
	if s.Status == domain.EventEnded {
		if s.Outcome != nil && s.WinnerID == decl.WinnerID {
			return e.resettleLevel(ctx, s.Outcome)
		}
		return fail(domain.InvalidTransitionf("season %s already ended", s.ID))
	}
	if err := e.checkDeclaration(ctx, decl); err != nil {
		return fail(err)
	}

	var matches []*domain.Match
	for _, id := range s.Tournaments {
		child, err := e.Store.GetTournament(ctx, id)
		if err != nil {
			return fail(err)
		}
		ms, err := e.seriesMatches(ctx, child.Series)
		if err != nil {
			return fail(err)
		}
		matches = append(matches, ms...)
	}

	o := resolver.ResolveDeclared(ls.Event, decl, matches)
	s.WinnerID, s.Outcome = decl.WinnerID, o
	var ended bool
	err = e.Retry.Do(ctx, func() error {
		var err error
		ended, err = e.Store.EndSeason(ctx, s)
		return err
	})
	if err != nil {
		return fail(err)
	}
	if !ended {
		return fail(domain.InvalidTransitionf("season %s already ended", s.ID))
	}
	e.Log.Info("season concluded", zap.String("season_id", s.ID), zap.String("winner", decl.WinnerID))
	return e.concludeLevel(ctx, o)
}

func (e *Engine) tournamentOf(ctx context.Context, m *domain.Match) (string, error) {
	if m.SeriesRef == "" {
		return "", domain.Validationf("match %s is not part of a series", m.ID)
	}
	s, err := e.Store.GetSeries(ctx, m.SeriesRef)
	if err != nil {
		return "", err
	}
	if s.TournamentRef == "" {
		return "", domain.Validationf("series %s is not part of a tournament", s.ID)
	}
	return s.TournamentRef, nil
}

func (e *Engine) checkDeclaration(ctx context.Context, d domain.Declaration) error {
	if d.WinnerID == "" {
		return domain.Validationf("declared winner is required")
	}
	if d.WinnerID == d.LoserID {
		return domain.Validationf("declared winner and loser must differ")
	}
	for _, id := range []string{d.WinnerID, d.LoserID} {
		if id == "" {
			continue
		}
		if _, err := e.Store.GetTeam(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadMatches(ctx context.Context, ids []string) ([]*domain.Match, error) {
	out := make([]*domain.Match, 0, len(ids))
	for _, id := range ids {
		m, err := e.Store.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *Engine) seriesMatches(ctx context.Context, seriesIDs []string) ([]*domain.Match, error) {
	var out []*domain.Match
	for _, id := range seriesIDs {
		s, err := e.Store.GetSeries(ctx, id)
		if err != nil {
			return nil, err
		}
		ms, err := e.loadMatches(ctx, s.Matches)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

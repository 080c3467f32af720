package service

import (
	"context"
	"time"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
)

type eventState struct {
	status  domain.EventStatus
	teams   []string // vazio quando o nível não tem confronto fixo
	outcome *domain.Outcome
}

func (e *Engine) loadEvent(ctx context.Context, ref domain.EventRef) (eventState, error) {
	switch ref.Level {
	case domain.LevelMatch:
		m, err := e.Store.GetMatch(ctx, ref.ID)
		if err != nil {
			return eventState{}, err
		}
		return eventState{status: m.Status, teams: m.Teams[:], outcome: m.Outcome}, nil
	case domain.LevelSeries:
		s, err := e.Store.GetSeries(ctx, ref.ID)
		if err != nil {
			return eventState{}, err
		}
		return eventState{status: s.Status, teams: s.Teams[:], outcome: s.Outcome}, nil
	case domain.LevelTournament:
		t, err := e.Store.GetTournament(ctx, ref.ID)
		if err != nil {
			return eventState{}, err
		}
		return eventState{status: t.Status, outcome: t.Outcome}, nil
	case domain.LevelSeason:
		s, err := e.Store.GetSeason(ctx, ref.ID)
		if err != nil {
			return eventState{}, err
		}
		return eventState{status: s.Status, outcome: s.Outcome}, nil
	}
	return eventState{}, domain.Validationf("unknown event level %q", ref.Level)
}

func wagerUpdated(w *domain.Wager, ts time.Time) events.WagerUpdated {
	return events.WagerUpdated{
		WagerID:         w.ID,
		Status:          string(w.Status),
		AgreeCredits:    w.AgreeCreditsBet,
		DisagreeCredits: w.DisagreeCreditsBet,
		AgreeCount:      w.AgreeBetsCount,
		DisagreeCount:   w.DisagreeBetsCount,
		Result:          string(w.Result),
		Ts:              ts,
	}
}

func eventConcluded(o *domain.Outcome, ts time.Time) events.EventConcluded {
	return events.EventConcluded{
		Level:    string(o.Event.Level),
		EventID:  o.Event.ID,
		WinnerID: o.WinnerID,
		LoserID:  o.LoserID,
		Score:    o.Score,
		Ts:       ts,
	}
}

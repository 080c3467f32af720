package service

import (
	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
)

// MatchConcludedFromEvent converte a mensagem da fila na entrada do motor
func MatchConcludedFromEvent(ev events.MatchConcluded) MatchConcludedInput {
	in := MatchConcludedInput{
		MatchID:        ev.MatchID,
		FirstBlood:     ev.FirstBlood,
		WentToOvertime: ev.WentToOvertime,
		EndTournament:  declaration(ev.EndTournament),
		EndSeason:      declaration(ev.EndSeason),
	}
	for _, r := range ev.Results {
		in.Results = append(in.Results, domain.PlayerResult{Name: r.Name, Stats: domain.Stats(r.Stats)})
	}
	return in
}

// Event é o inverso de MatchConcludedFromEvent, usado ao enfileirar
func (in MatchConcludedInput) Event() events.MatchConcluded {
	ev := events.MatchConcluded{
		MatchID:        in.MatchID,
		FirstBlood:     in.FirstBlood,
		WentToOvertime: in.WentToOvertime,
	}
	for _, r := range in.Results {
		ev.Results = append(ev.Results, events.PlayerResult{Name: r.Name, Stats: r.Stats})
	}
	if d := in.EndTournament; d != nil {
		ev.EndTournament = &events.Declaration{WinnerID: d.WinnerID, LoserID: d.LoserID}
	}
	if d := in.EndSeason; d != nil {
		ev.EndSeason = &events.Declaration{WinnerID: d.WinnerID, LoserID: d.LoserID}
	}
	return ev
}

func declaration(d *events.Declaration) *domain.Declaration {
	if d == nil {
		return nil
	}
	return &domain.Declaration{WinnerID: d.WinnerID, LoserID: d.LoserID}
}

package resolver

import (
	"fmt"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// AdvanceSeries recalcula o progresso da série a partir das partidas encerradas
// (na ordem de s.Matches) e informa se algum time já atingiu ceil(bestOf/2) vitórias.
// Atualiza Wins, OvertimeCount, FirstBlood e Outcome de s; em caso de decisão
// também Status, WinnerID e LoserID.
func AdvanceSeries(s *domain.Series, teams [2]*domain.Team, matches []*domain.Match) bool {
	out := domain.NewOutcome(domain.EventRef{Level: domain.LevelSeries, ID: s.ID})
	out.Teams[s.Teams[0]] = domain.Stats{}
	out.Teams[s.Teams[1]] = domain.Stats{}

	wins := map[string]int{s.Teams[0]: 0, s.Teams[1]: 0}
	overtime := 0
	for i, m := range matches {
		if m == nil || m.Status != domain.EventEnded || m.Outcome == nil {
			continue
		}
		// first blood da série é o da primeira partida e nunca é sobrescrito
		if i == 0 && s.FirstBlood == "" {
			s.FirstBlood = m.FirstBlood
		}
		if m.WinnerID != "" {
			wins[m.WinnerID]++
		}
		if m.WentToOvertime {
			overtime++
		}
		out.Merge(m.Outcome)
	}

	s.Wins = wins
	s.OvertimeCount = overtime

	out.FirstBlood = s.FirstBlood
	out.Flags[domain.FlagWentToOvertime] = overtime > 0
	out.Totals[domain.AttrOvertimeCount] = float64(overtime)
	out.Score = fmt.Sprintf("%s:%d - %s:%d",
		teamName(teams[0], s.Teams[0]), wins[s.Teams[0]],
		teamName(teams[1], s.Teams[1]), wins[s.Teams[1]])

	need := s.WinsNeeded()
	decided := false
	for i, id := range s.Teams {
		if wins[id] >= need {
			out.WinnerID = id
			out.LoserID = s.Teams[1-i]
			decided = true
			break
		}
	}
	s.Outcome = out
	if decided {
		s.Status = domain.EventEnded
		s.WinnerID = out.WinnerID
		s.LoserID = out.LoserID
	}
	return decided
}

func teamName(t *domain.Team, fallback string) string {
	if t == nil || t.Name == "" {
		return fallback
	}
	return t.Name
}

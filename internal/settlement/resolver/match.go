package resolver

import (
	"fmt"
	"strconv"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// MatchInput reúne o que o resolvedor de partida precisa, já carregado do storage
type MatchInput struct {
	Match          *domain.Match
	Teams          [2]*domain.Team
	Players        map[string]*domain.Player // por id, elenco dos dois times
	Results        []domain.PlayerResult
	FirstBlood     string
	WentToOvertime bool
}

// ResolveMatch agrega os resultados por jogador em totais por time e define
// vencedor, MVP e placar. Empate em gols deixa WinnerID vazio.
func ResolveMatch(in MatchInput) (*domain.Outcome, error) {
	m := in.Match
	if m == nil {
		return nil, domain.Validationf("match is required")
	}
	for i, t := range in.Teams {
		if t == nil || t.ID != m.Teams[i] {
			return nil, domain.NotFoundf("team %s of match %s", m.Teams[i], m.ID)
		}
	}
	if in.FirstBlood != "" && in.FirstBlood != m.Teams[0] && in.FirstBlood != m.Teams[1] {
		return nil, domain.Validationf("first blood team %s did not play match %s", in.FirstBlood, m.ID)
	}

	// junta nome -> jogador usando apenas os elencos dos dois times
	byName := make(map[string]*domain.Player)
	for _, t := range in.Teams {
		for _, pid := range t.Players {
			p, ok := in.Players[pid]
			if !ok {
				continue
			}
			byName[p.Name] = p
		}
	}

	out := domain.NewOutcome(domain.EventRef{Level: domain.LevelMatch, ID: m.ID})
	out.Teams[m.Teams[0]] = domain.Stats{}
	out.Teams[m.Teams[1]] = domain.Stats{}

	for _, r := range in.Results {
		p, ok := byName[r.Name]
		if !ok {
			return nil, domain.Validationf("player %q is not on the roster of match %s", r.Name, m.ID)
		}
		if _, dup := out.Players[p.ID]; dup {
			return nil, domain.Validationf("duplicate result for player %q", r.Name)
		}
		out.Players[p.ID] = r.Stats.Clone()
		team, ok := out.Teams[p.TeamRef]
		if !ok {
			return nil, domain.Validationf("player %q belongs to team %s outside match %s", r.Name, p.TeamRef, m.ID)
		}
		team.Add(r.Stats)
		out.Totals.Add(r.Stats)
	}

	goalsA := out.Teams[m.Teams[0]].Get(domain.AttrGoals)
	goalsB := out.Teams[m.Teams[1]].Get(domain.AttrGoals)
	switch {
	case goalsA > goalsB:
		out.WinnerID, out.LoserID = m.Teams[0], m.Teams[1]
	case goalsB > goalsA:
		out.WinnerID, out.LoserID = m.Teams[1], m.Teams[0]
	}

	if out.WinnerID != "" {
		out.MVP = mvp(in.Results, byName, out.WinnerID)
	}
	out.Score = fmt.Sprintf("%s:%s - %s:%s",
		in.Teams[0].Name, formatStat(goalsA), in.Teams[1].Name, formatStat(goalsB))
	out.FirstBlood = in.FirstBlood
	out.Flags[domain.FlagWentToOvertime] = in.WentToOvertime
	out.Totals[domain.AttrMatchesPlayed] = 1
	if in.WentToOvertime {
		out.Totals[domain.AttrOvertimeCount] = 1
	}
	return out, nil
}

// ApplyMatchOutcome copia os campos resolvidos para a partida
func ApplyMatchOutcome(m *domain.Match, o *domain.Outcome, wentToOvertime bool) {
	m.Status = domain.EventEnded
	m.WinnerID = o.WinnerID
	m.LoserID = o.LoserID
	m.FirstBlood = o.FirstBlood
	m.WentToOvertime = wentToOvertime
	m.MVP = o.MVP
	m.Score = o.Score
	m.Outcome = o
}

// mvp é o jogador do time vencedor com maior score; empate fica com o primeiro da lista
func mvp(results []domain.PlayerResult, byName map[string]*domain.Player, winnerID string) string {
	best := ""
	bestScore := 0.0
	for _, r := range results {
		p := byName[r.Name]
		if p == nil || p.TeamRef != winnerID {
			continue
		}
		if s := r.Stats.Get(domain.AttrScore); best == "" || s > bestScore {
			best, bestScore = p.ID, s
		}
	}
	return best
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

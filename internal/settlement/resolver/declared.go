package resolver

import "github.com/radieske/esports-wager-settlement/internal/settlement/domain"

// ResolveDeclared monta o resultado de torneio ou temporada: vencedor e
// perdedor vêm da declaração do admin, atributos são a soma de todas as
// partidas descendentes já encerradas.
func ResolveDeclared(ref domain.EventRef, decl domain.Declaration, matches []*domain.Match) *domain.Outcome {
	out := domain.NewOutcome(ref)
	overtime := 0
	for _, m := range matches {
		if m == nil || m.Status != domain.EventEnded || m.Outcome == nil {
			continue
		}
		out.Merge(m.Outcome)
		if m.WentToOvertime {
			overtime++
		}
	}
	for _, id := range []string{decl.WinnerID, decl.LoserID} {
		if _, ok := out.Teams[id]; id != "" && !ok {
			out.Teams[id] = domain.Stats{}
		}
	}
	out.WinnerID = decl.WinnerID
	out.LoserID = decl.LoserID
	out.Flags[domain.FlagWentToOvertime] = overtime > 0
	out.Totals[domain.AttrOvertimeCount] = float64(overtime)
	return out
}

package events

import "time"

// PlayerResult é a linha de estatísticas de um jogador, identificado pelo nome
type PlayerResult struct {
	Name  string             `json:"name"`
	Stats map[string]float64 `json:"stats"`
}

// Declaration é o vencedor/perdedor declarado pelo admin para torneio ou temporada
type Declaration struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId,omitempty"`
}

// MatchConcluded é a mensagem publicada no tópico "match_concluded"
type MatchConcluded struct {
	MatchID        string         `json:"matchId"`
	Results        []PlayerResult `json:"results"`
	FirstBlood     string         `json:"firstBlood"`
	WentToOvertime bool           `json:"wentToOvertime"`
	EndTournament  *Declaration   `json:"endTournament,omitempty"`
	EndSeason      *Declaration   `json:"endSeason,omitempty"`
	RequestedAt    time.Time      `json:"requestedAt"`
}

func (m MatchConcluded) Key() string { return m.MatchID }

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// Fixtures é o formato do arquivo de carga inicial (SEED_FILE)
type Fixtures struct {
	Users       []domain.User       `json:"users"`
	Teams       []domain.Team       `json:"teams"`
	Players     []domain.Player     `json:"players"`
	Seasons     []domain.Season     `json:"seasons"`
	Tournaments []domain.Tournament `json:"tournaments"`
	Series      []domain.Series     `json:"series"`
	Matches     []domain.Match      `json:"matches"`
}

// Seed grava usuários e a hierarquia de eventos lidos de r
func Seed(ctx context.Context, st Store, r io.Reader) error {
	var fx Fixtures
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for i := range fx.Users {
		if err := st.SaveUser(ctx, &fx.Users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", fx.Users[i].ID, err)
		}
	}
	for i := range fx.Teams {
		if err := st.SaveTeam(ctx, &fx.Teams[i]); err != nil {
			return fmt.Errorf("seed team %s: %w", fx.Teams[i].ID, err)
		}
	}
	for i := range fx.Players {
		if err := st.SavePlayer(ctx, &fx.Players[i]); err != nil {
			return fmt.Errorf("seed player %s: %w", fx.Players[i].ID, err)
		}
	}
	for i := range fx.Seasons {
		if err := st.SaveSeason(ctx, &fx.Seasons[i]); err != nil {
			return fmt.Errorf("seed season %s: %w", fx.Seasons[i].ID, err)
		}
	}
	for i := range fx.Tournaments {
		if err := st.SaveTournament(ctx, &fx.Tournaments[i]); err != nil {
			return fmt.Errorf("seed tournament %s: %w", fx.Tournaments[i].ID, err)
		}
	}
	for i := range fx.Series {
		if err := st.SaveSeries(ctx, &fx.Series[i]); err != nil {
			return fmt.Errorf("seed series %s: %w", fx.Series[i].ID, err)
		}
	}
	for i := range fx.Matches {
		if err := st.SaveMatch(ctx, &fx.Matches[i]); err != nil {
			return fmt.Errorf("seed match %s: %w", fx.Matches[i].ID, err)
		}
	}
	return nil
}

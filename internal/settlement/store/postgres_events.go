package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// encodeOutcome devolve nil (NULL) quando não há resultado; o JSONB rejeita texto vazio
func encodeOutcome(o *domain.Outcome) (any, error) {
	if o == nil {
		return nil, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeOutcome(b []byte) (*domain.Outcome, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var o domain.Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &o, nil
}

func pair(a pq.StringArray) [2]string {
	var out [2]string
	copy(out[:], a)
	return out
}

func (p *Postgres) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	t := domain.Team{ID: id}
	var players pq.StringArray
	err := p.db.QueryRowContext(ctx, `SELECT name, players FROM teams WHERE id=$1`, id).Scan(&t.Name, &players)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("team %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	t.Players = []string(players)
	return &t, nil
}

func (p *Postgres) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	pl := domain.Player{ID: id}
	err := p.db.QueryRowContext(ctx, `SELECT team_ref, name FROM players WHERE id=$1`, id).Scan(&pl.TeamRef, &pl.Name)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("player %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &pl, nil
}

func (p *Postgres) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	m := domain.Match{ID: id}
	var (
		teams   pq.StringArray
		status  string
		outcome []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT teams, series_ref, status, winner_id, loser_id, first_blood,
		       went_to_overtime, mvp, score, outcome
		FROM matches WHERE id=$1`, id).Scan(&teams, &m.SeriesRef, &status, &m.WinnerID, &m.LoserID,
		&m.FirstBlood, &m.WentToOvertime, &m.MVP, &m.Score, &outcome)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("match %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	m.Teams = pair(teams)
	m.Status = domain.EventStatus(status)
	if m.Outcome, err = decodeOutcome(outcome); err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) GetSeries(ctx context.Context, id string) (*domain.Series, error) {
	s := domain.Series{ID: id}
	var (
		matches, teams pq.StringArray
		status         string
		wins, outcome  []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT matches, teams, best_of, tournament_ref, status, wins, winner_id, loser_id,
		       first_blood, overtime_count, outcome
		FROM series WHERE id=$1`, id).Scan(&matches, &teams, &s.BestOf, &s.TournamentRef, &status, &wins,
		&s.WinnerID, &s.LoserID, &s.FirstBlood, &s.OvertimeCount, &outcome)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("series %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	s.Matches = []string(matches)
	s.Teams = pair(teams)
	s.Status = domain.EventStatus(status)
	if len(wins) > 0 {
		if err := json.Unmarshal(wins, &s.Wins); err != nil {
			return nil, fmt.Errorf("decode wins of series %s: %w", id, err)
		}
	}
	if s.Outcome, err = decodeOutcome(outcome); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) GetTournament(ctx context.Context, id string) (*domain.Tournament, error) {
	t := domain.Tournament{ID: id}
	var (
		series  pq.StringArray
		status  string
		outcome []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT series, season_ref, status, winner_id, loser_id, outcome
		FROM tournaments WHERE id=$1`, id).Scan(&series, &t.SeasonRef, &status, &t.WinnerID, &t.LoserID, &outcome)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("tournament %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	t.Series = []string(series)
	t.Status = domain.EventStatus(status)
	if t.Outcome, err = decodeOutcome(outcome); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) GetSeason(ctx context.Context, id string) (*domain.Season, error) {
	s := domain.Season{ID: id}
	var (
		tournaments pq.StringArray
		status      string
		outcome     []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT tournaments, status, winner_id, outcome FROM seasons WHERE id=$1`, id).
		Scan(&tournaments, &status, &s.WinnerID, &outcome)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("season %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	s.Tournaments = []string(tournaments)
	s.Status = domain.EventStatus(status)
	if s.Outcome, err = decodeOutcome(outcome); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) SaveTeam(ctx context.Context, t *domain.Team) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, players) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, players=EXCLUDED.players`,
		t.ID, t.Name, pq.Array(t.Players))
	return mapErr(err)
}

func (p *Postgres) SavePlayer(ctx context.Context, pl *domain.Player) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO players (id, team_ref, name) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET team_ref=EXCLUDED.team_ref, name=EXCLUDED.name`,
		pl.ID, pl.TeamRef, pl.Name)
	return mapErr(err)
}

func (p *Postgres) SaveMatch(ctx context.Context, m *domain.Match) error {
	outcome, err := encodeOutcome(m.Outcome)
	if err != nil {
		return err
	}
	status := m.Status
	if status == "" {
		status = domain.EventScheduled
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO matches (id, teams, series_ref, status, winner_id, loser_id, first_blood,
		                     went_to_overtime, mvp, score, outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  teams=EXCLUDED.teams, series_ref=EXCLUDED.series_ref, status=EXCLUDED.status,
		  winner_id=EXCLUDED.winner_id, loser_id=EXCLUDED.loser_id, first_blood=EXCLUDED.first_blood,
		  went_to_overtime=EXCLUDED.went_to_overtime, mvp=EXCLUDED.mvp, score=EXCLUDED.score,
		  outcome=EXCLUDED.outcome`,
		m.ID, pq.Array(m.Teams[:]), m.SeriesRef, string(status), m.WinnerID, m.LoserID, m.FirstBlood,
		m.WentToOvertime, m.MVP, m.Score, outcome)
	return mapErr(err)
}

func (p *Postgres) SaveSeries(ctx context.Context, s *domain.Series) error {
	outcome, err := encodeOutcome(s.Outcome)
	if err != nil {
		return err
	}
	wins, err := json.Marshal(s.Wins)
	if err != nil {
		return err
	}
	status := s.Status
	if status == "" {
		status = domain.EventScheduled
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO series (id, matches, teams, best_of, tournament_ref, status, wins, winner_id,
		                    loser_id, first_blood, overtime_count, outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
		  matches=EXCLUDED.matches, teams=EXCLUDED.teams, best_of=EXCLUDED.best_of,
		  tournament_ref=EXCLUDED.tournament_ref, status=EXCLUDED.status, wins=EXCLUDED.wins,
		  winner_id=EXCLUDED.winner_id, loser_id=EXCLUDED.loser_id, first_blood=EXCLUDED.first_blood,
		  overtime_count=EXCLUDED.overtime_count, outcome=EXCLUDED.outcome`,
		s.ID, pq.Array(s.Matches), pq.Array(s.Teams[:]), s.BestOf, s.TournamentRef, string(status), wins,
		s.WinnerID, s.LoserID, s.FirstBlood, s.OvertimeCount, outcome)
	return mapErr(err)
}

func (p *Postgres) SaveTournament(ctx context.Context, t *domain.Tournament) error {
	outcome, err := encodeOutcome(t.Outcome)
	if err != nil {
		return err
	}
	status := t.Status
	if status == "" {
		status = domain.EventScheduled
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, series, season_ref, status, winner_id, loser_id, outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
		  series=EXCLUDED.series, season_ref=EXCLUDED.season_ref, status=EXCLUDED.status,
		  winner_id=EXCLUDED.winner_id, loser_id=EXCLUDED.loser_id, outcome=EXCLUDED.outcome`,
		t.ID, pq.Array(t.Series), t.SeasonRef, string(status), t.WinnerID, t.LoserID, outcome)
	return mapErr(err)
}

func (p *Postgres) SaveSeason(ctx context.Context, s *domain.Season) error {
	outcome, err := encodeOutcome(s.Outcome)
	if err != nil {
		return err
	}
	status := s.Status
	if status == "" {
		status = domain.EventScheduled
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO seasons (id, tournaments, status, winner_id, outcome)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
		  tournaments=EXCLUDED.tournaments, status=EXCLUDED.status,
		  winner_id=EXCLUDED.winner_id, outcome=EXCLUDED.outcome`,
		s.ID, pq.Array(s.Tournaments), string(status), s.WinnerID, outcome)
	return mapErr(err)
}

var eventTables = map[domain.EventLevel]string{
	domain.LevelMatch:      "matches",
	domain.LevelSeries:     "series",
	domain.LevelTournament: "tournaments",
	domain.LevelSeason:     "seasons",
}

func (p *Postgres) StartEvent(ctx context.Context, ref domain.EventRef) error {
	table, ok := eventTables[ref.Level]
	if !ok {
		return domain.Validationf("unknown event level %q", ref.Level)
	}
	var status string
	err := p.db.QueryRowContext(ctx, `
		UPDATE `+table+` SET status = CASE WHEN status='ended' THEN status ELSE 'started' END
		WHERE id=$1 RETURNING status`, ref.ID).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.NotFoundf("event %s", ref)
	}
	if err != nil {
		return mapErr(err)
	}
	if status == string(domain.EventEnded) {
		return domain.InvalidTransitionf("event %s already ended", ref)
	}
	return nil
}

// endEvent executa o UPDATE guardado por status <> 'ended'; false quando já encerrado
func (p *Postgres) endEvent(ctx context.Context, ref domain.EventRef, q string, args ...any) (bool, error) {
	ok, err := affected(p.db.ExecContext(ctx, q, args...))
	if err != nil || ok {
		return ok, err
	}
	var one int
	err = p.db.QueryRowContext(ctx, `SELECT 1 FROM `+eventTables[ref.Level]+` WHERE id=$1`, ref.ID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, domain.NotFoundf("event %s", ref)
	}
	return false, mapErr(err)
}

func (p *Postgres) EndMatch(ctx context.Context, m *domain.Match) (bool, error) {
	outcome, err := encodeOutcome(m.Outcome)
	if err != nil {
		return false, err
	}
	return p.endEvent(ctx, domain.EventRef{Level: domain.LevelMatch, ID: m.ID}, `
		UPDATE matches SET status='ended', winner_id=$1, loser_id=$2, first_blood=$3,
		  went_to_overtime=$4, mvp=$5, score=$6, outcome=$7
		WHERE id=$8 AND status <> 'ended'`,
		m.WinnerID, m.LoserID, m.FirstBlood, m.WentToOvertime, m.MVP, m.Score, outcome, m.ID)
}

func (p *Postgres) EndSeries(ctx context.Context, s *domain.Series) (bool, error) {
	outcome, err := encodeOutcome(s.Outcome)
	if err != nil {
		return false, err
	}
	wins, err := json.Marshal(s.Wins)
	if err != nil {
		return false, err
	}
	return p.endEvent(ctx, domain.EventRef{Level: domain.LevelSeries, ID: s.ID}, `
		UPDATE series SET status='ended', wins=$1, winner_id=$2, loser_id=$3,
		  first_blood=CASE WHEN first_blood='' THEN $4 ELSE first_blood END,
		  overtime_count=$5, outcome=$6
		WHERE id=$7 AND status <> 'ended'`,
		wins, s.WinnerID, s.LoserID, s.FirstBlood, s.OvertimeCount, outcome, s.ID)
}

func (p *Postgres) EndTournament(ctx context.Context, t *domain.Tournament) (bool, error) {
	outcome, err := encodeOutcome(t.Outcome)
	if err != nil {
		return false, err
	}
	return p.endEvent(ctx, domain.EventRef{Level: domain.LevelTournament, ID: t.ID}, `
		UPDATE tournaments SET status='ended', winner_id=$1, loser_id=$2, outcome=$3
		WHERE id=$4 AND status <> 'ended'`,
		t.WinnerID, t.LoserID, outcome, t.ID)
}

func (p *Postgres) EndSeason(ctx context.Context, s *domain.Season) (bool, error) {
	outcome, err := encodeOutcome(s.Outcome)
	if err != nil {
		return false, err
	}
	return p.endEvent(ctx, domain.EventRef{Level: domain.LevelSeason, ID: s.ID}, `
		UPDATE seasons SET status='ended', winner_id=$1, outcome=$2
		WHERE id=$3 AND status <> 'ended'`,
		s.WinnerID, outcome, s.ID)
}

func (p *Postgres) SaveSeriesProgress(ctx context.Context, s *domain.Series) error {
	outcome, err := encodeOutcome(s.Outcome)
	if err != nil {
		return err
	}
	wins, err := json.Marshal(s.Wins)
	if err != nil {
		return err
	}
	ok, err := affected(p.db.ExecContext(ctx, `
		UPDATE series SET wins=$1, overtime_count=$2,
		  first_blood=CASE WHEN first_blood='' THEN $3 ELSE first_blood END,
		  outcome=$4
		WHERE id=$5 AND status <> 'ended'`,
		wins, s.OvertimeCount, s.FirstBlood, outcome, s.ID))
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidTransitionf("series %s missing or already ended", s.ID)
	}
	return nil
}

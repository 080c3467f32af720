package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

//go:embed schema.sql
var schema string

// Postgres implementa Store sobre Postgres. Débito e acúmulo no pool usam
// UPDATEs condicionais dentro da mesma transação, sem leitura prévia.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ Store = (*Postgres)(nil)

// Migrate aplica o schema (idempotente)
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// mapErr traduz falhas de serialização/deadlock em ConcurrencyConflict
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return domain.Conflict(err)
		case "23514":
			// check constraint (ex.: credits >= 0)
			return domain.InsufficientCreditsf("%s", pqErr.Message)
		}
	}
	return err
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

// --- Ledger ---

func (p *Postgres) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u := domain.User{ID: id}
	err := p.db.QueryRowContext(ctx,
		`SELECT credits, earned_credits, lifetime_earned_credits FROM users WHERE id=$1`, id,
	).Scan(&u.Credits, &u.EarnedCredits, &u.LifetimeEarnedCredits)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("user %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (p *Postgres) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, credits, earned_credits, lifetime_earned_credits)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET
		  credits = EXCLUDED.credits,
		  earned_credits = EXCLUDED.earned_credits,
		  lifetime_earned_credits = EXCLUDED.lifetime_earned_credits`,
		u.ID, u.Credits, u.EarnedCredits, u.LifetimeEarnedCredits)
	return mapErr(err)
}

func debitTx(ctx context.Context, tx *sql.Tx, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET credits = credits - $1 WHERE id=$2 AND credits >= $1 RETURNING credits`,
		amount, userID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, err
	}

	// nenhuma linha: usuário inexistente ou saldo insuficiente
	var current decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id=$1`, userID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, domain.NotFoundf("user %s", userID)
		}
		return decimal.Zero, err
	}
	return current, domain.InsufficientCreditsf("user %s has %s, needs %s", userID, current, amount)
}

func (p *Postgres) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = debitTx(ctx, tx, userID, amount)
		return err
	})
	return balance, err
}

func (p *Postgres) PlaceBet(ctx context.Context, bet *domain.Bet) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if balance, err = debitTx(ctx, tx, bet.UserID, bet.Credits); err != nil {
			return err
		}

		agree, disagree := decimal.Zero, decimal.Zero
		agreeN, disagreeN := 0, 0
		if bet.Side == domain.SideAgree {
			agree, agreeN = bet.Credits, 1
		} else {
			disagree, disagreeN = bet.Credits, 1
		}

		// o WHERE status='bettable' é reavaliado após o lock da linha, então
		// uma transição concorrente para ongoing rejeita a aposta
		var id string
		err = tx.QueryRowContext(ctx, `
			UPDATE wagers SET
			  agree_credits = agree_credits + $1,
			  disagree_credits = disagree_credits + $2,
			  agree_count = agree_count + $3,
			  disagree_count = disagree_count + $4,
			  bets = array_append(bets, $5)
			WHERE id=$6 AND status='bettable'
			RETURNING id`,
			agree, disagree, agreeN, disagreeN, bet.ID, bet.WagerID).Scan(&id)
		if err == sql.ErrNoRows {
			var status string
			if err := tx.QueryRowContext(ctx, `SELECT status FROM wagers WHERE id=$1`, bet.WagerID).Scan(&status); err != nil {
				if err == sql.ErrNoRows {
					return domain.NotFoundf("wager %s", bet.WagerID)
				}
				return err
			}
			return domain.InvalidTransitionf("wager %s is %s, not bettable", bet.WagerID, status)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bets (id, user_id, wager_id, side, credits, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			bet.ID, bet.UserID, bet.WagerID, string(bet.Side), bet.Credits, bet.CreatedAt)
		return err
	})
	return balance, err
}

func (p *Postgres) CreditPayout(ctx context.Context, po domain.Payout) (bool, error) {
	applied := false
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO payouts (wager_id, user_id, amount, kind)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (wager_id, user_id) DO NOTHING`,
			po.WagerID, po.UserID, po.Amount, string(po.Kind))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil // já creditado
		}

		q := `UPDATE users SET credits = credits + $1 WHERE id=$2`
		if po.Kind == domain.PayoutWin {
			q = `UPDATE users SET credits = credits + $1,
			       earned_credits = earned_credits + $1,
			       lifetime_earned_credits = lifetime_earned_credits + $1
			     WHERE id=$2`
		}
		res, err = tx.ExecContext(ctx, q, po.Amount, po.UserID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFoundf("user %s", po.UserID)
		}
		applied = true
		return nil
	})
	return applied, err
}

// --- Wagers ---

const wagerColumns = `id, status, wager_type, event_level, event_id, predicate,
	agree_credits, disagree_credits, agree_count, disagree_count, bets,
	agree_is_winner, result, paid_out, review_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(row rowScanner) (*domain.Wager, error) {
	var (
		w         domain.Wager
		status    string
		level     string
		result    string
		predicate []byte
		bets      pq.StringArray
		winner    sql.NullBool
	)
	err := row.Scan(&w.ID, &status, &w.WagerType, &level, &w.EventRef.ID, &predicate,
		&w.AgreeCreditsBet, &w.DisagreeCreditsBet, &w.AgreeBetsCount, &w.DisagreeBetsCount, &bets,
		&winner, &result, &w.PaidOut, &w.ReviewReason, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = domain.WagerStatus(status)
	w.EventRef.Level = domain.EventLevel(level)
	w.Result = domain.Result(result)
	w.Bets = []string(bets)
	if winner.Valid {
		v := winner.Bool
		w.AgreeIsWinner = &v
	}
	if err := json.Unmarshal(predicate, &w.Predicate); err != nil {
		return nil, fmt.Errorf("decode predicate of wager %s: %w", w.ID, err)
	}
	return &w, nil
}

func (p *Postgres) queryWagers(ctx context.Context, q string, args ...any) ([]*domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateWager(ctx context.Context, w *domain.Wager) error {
	pred, err := json.Marshal(w.Predicate)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO wagers (id, status, wager_type, event_level, event_id, predicate, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		w.ID, string(w.Status), w.WagerType, string(w.EventRef.Level), w.EventRef.ID, pred, w.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) GetWager(ctx context.Context, id string) (*domain.Wager, error) {
	w, err := scanWager(p.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("wager %s", id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

func (p *Postgres) ListWagersByEvent(ctx context.Context, ref domain.EventRef) ([]*domain.Wager, error) {
	return p.queryWagers(ctx, `SELECT `+wagerColumns+` FROM wagers
		WHERE event_level=$1 AND event_id=$2 ORDER BY created_at, id`, string(ref.Level), ref.ID)
}

func (p *Postgres) ListWagersByStatus(ctx context.Context, status domain.WagerStatus) ([]*domain.Wager, error) {
	return p.queryWagers(ctx, `SELECT `+wagerColumns+` FROM wagers
		WHERE status=$1 ORDER BY created_at, id`, string(status))
}

func (p *Postgres) ListUnpaidEndedWagers(ctx context.Context) ([]*domain.Wager, error) {
	return p.queryWagers(ctx, `SELECT `+wagerColumns+` FROM wagers
		WHERE status='ended' AND NOT paid_out AND review_reason='' ORDER BY created_at, id`)
}

func (p *Postgres) ListBets(ctx context.Context, wagerID string) ([]domain.Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.wager_id, b.side, b.credits, b.created_at
		FROM wagers w
		CROSS JOIN LATERAL unnest(w.bets) WITH ORDINALITY AS o(bet_id, pos)
		JOIN bets b ON b.id = o.bet_id
		WHERE w.id=$1
		ORDER BY o.pos`, wagerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var side string
		if err := rows.Scan(&b.ID, &b.UserID, &b.WagerID, &side, &b.Credits, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Side = domain.Side(side)
		out = append(out, b)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) TransitionWager(ctx context.Context, id string, from, to domain.WagerStatus) (bool, error) {
	if !from.CanMoveTo(to) {
		return false, nil
	}
	ok, err := affected(p.db.ExecContext(ctx,
		`UPDATE wagers SET status=$1 WHERE id=$2 AND status=$3`, string(to), id, string(from)))
	if err != nil || ok {
		return ok, err
	}
	return false, p.ensureWager(ctx, id)
}

func (p *Postgres) EndWager(ctx context.Context, id string, result domain.Result) (bool, error) {
	var winner sql.NullBool
	if result != domain.ResultVoid {
		winner = sql.NullBool{Valid: true, Bool: result == domain.ResultAgree}
	}
	ok, err := affected(p.db.ExecContext(ctx, `
		UPDATE wagers SET status='ended', result=$1, agree_is_winner=$2
		WHERE id=$3 AND status <> 'ended'`, string(result), winner, id))
	if err != nil || ok {
		return ok, err
	}
	return false, p.ensureWager(ctx, id)
}

func (p *Postgres) MarkPaidOut(ctx context.Context, id string) error {
	ok, err := affected(p.db.ExecContext(ctx, `UPDATE wagers SET paid_out=TRUE WHERE id=$1`, id))
	if err == nil && !ok {
		return domain.NotFoundf("wager %s", id)
	}
	return err
}

func (p *Postgres) FlagForReview(ctx context.Context, id, reason string) error {
	ok, err := affected(p.db.ExecContext(ctx, `UPDATE wagers SET review_reason=$1 WHERE id=$2`, reason, id))
	if err == nil && !ok {
		return domain.NotFoundf("wager %s", id)
	}
	return err
}

func (p *Postgres) ensureWager(ctx context.Context, id string) error {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM wagers WHERE id=$1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.NotFoundf("wager %s", id)
	}
	return mapErr(err)
}

package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// Ledger concentra as operações de saldo. Todas são atômicas por chamada.
type Ledger interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error

	// Debit falha com InsufficientCredits se o saldo for menor que amount
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// PlaceBet debita o usuário e acumula a aposta no pool do wager numa
	// única unidade atômica; falha com InvalidStateTransition se o wager
	// não estiver bettable
	PlaceBet(ctx context.Context, bet *domain.Bet) (decimal.Decimal, error)

	// CreditPayout é idempotente por (wagerID, userID); applied=false quando
	// o crédito já havia sido feito
	CreditPayout(ctx context.Context, p domain.Payout) (applied bool, err error)
}

// Wagers guarda wagers e apostas
type Wagers interface {
	CreateWager(ctx context.Context, w *domain.Wager) error
	GetWager(ctx context.Context, id string) (*domain.Wager, error)
	ListWagersByEvent(ctx context.Context, ref domain.EventRef) ([]*domain.Wager, error)
	ListWagersByStatus(ctx context.Context, status domain.WagerStatus) ([]*domain.Wager, error)
	ListUnpaidEndedWagers(ctx context.Context) ([]*domain.Wager, error)
	ListBets(ctx context.Context, wagerID string) ([]domain.Bet, error)

	// TransitionWager é um check-and-set de status; false quando o wager não estava em from
	TransitionWager(ctx context.Context, id string, from, to domain.WagerStatus) (bool, error)

	// EndWager move para ended gravando o resultado, uma única vez
	EndWager(ctx context.Context, id string, result domain.Result) (bool, error)

	MarkPaidOut(ctx context.Context, id string) error
	FlagForReview(ctx context.Context, id, reason string) error
}

// Events é a arena da hierarquia temporada -> torneio -> série -> partida.
// Referências cruzadas são sempre ids.
type Events interface {
	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	GetMatch(ctx context.Context, id string) (*domain.Match, error)
	GetSeries(ctx context.Context, id string) (*domain.Series, error)
	GetTournament(ctx context.Context, id string) (*domain.Tournament, error)
	GetSeason(ctx context.Context, id string) (*domain.Season, error)

	SaveTeam(ctx context.Context, t *domain.Team) error
	SavePlayer(ctx context.Context, p *domain.Player) error
	SaveMatch(ctx context.Context, m *domain.Match) error
	SaveSeries(ctx context.Context, s *domain.Series) error
	SaveTournament(ctx context.Context, t *domain.Tournament) error
	SaveSeason(ctx context.Context, s *domain.Season) error

	// StartEvent marca o evento como iniciado se ainda estiver agendado
	StartEvent(ctx context.Context, ref domain.EventRef) error

	// Os End* gravam o resultado e só têm efeito na primeira chamada
	EndMatch(ctx context.Context, m *domain.Match) (bool, error)
	EndSeries(ctx context.Context, s *domain.Series) (bool, error)
	EndTournament(ctx context.Context, t *domain.Tournament) (bool, error)
	EndSeason(ctx context.Context, s *domain.Season) (bool, error)

	// SaveSeriesProgress atualiza vitórias, overtime e first blood de uma série ainda aberta
	SaveSeriesProgress(ctx context.Context, s *domain.Series) error
}

// Store é o colaborador de persistência completo usado pelo motor
type Store interface {
	Ledger
	Wagers
	Events
}

package service

import (
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/topics"
)

// predicados aceitos por nível; torneio e temporada só têm vencedor declarado e estatísticas somadas
var kindsByLevel = map[domain.EventLevel][]domain.PredicateKind{
	domain.LevelMatch: {
		domain.PredicateWinnerEquals, domain.PredicateScoreStringEquals, domain.PredicateAttributeCompare,
		domain.PredicateBooleanFlagEquals, domain.PredicateFirstBloodEquals, domain.PredicateMVPEquals,
	},
	domain.LevelSeries: {
		domain.PredicateWinnerEquals, domain.PredicateScoreStringEquals, domain.PredicateAttributeCompare,
		domain.PredicateBooleanFlagEquals, domain.PredicateFirstBloodEquals,
	},
	domain.LevelTournament: {
		domain.PredicateWinnerEquals, domain.PredicateAttributeCompare, domain.PredicateBooleanFlagEquals,
	},
	domain.LevelSeason: {
		domain.PredicateWinnerEquals, domain.PredicateAttributeCompare, domain.PredicateBooleanFlagEquals,
	},
}

type CreateWagerInput struct {
	EventRef  domain.EventRef
	WagerType string
	Predicate domain.Predicate
	Draft     bool // cria em created; OpenWager libera as apostas
}

// CreateWager valida o predicado contra o evento e grava o wager
func (e *Engine) CreateWager(ctx context.Context, in CreateWagerInput) (*domain.Wager, error) {
	if !in.EventRef.Level.Valid() || in.EventRef.ID == "" {
		return nil, domain.Validationf("invalid event ref %q", in.EventRef)
	}
	if in.WagerType == "" {
		return nil, domain.Validationf("wagerType is required")
	}
	if err := in.Predicate.Validate(); err != nil {
		return nil, err
	}
	if !slices.Contains(kindsByLevel[in.EventRef.Level], in.Predicate.Kind) {
		return nil, domain.Validationf("predicate %s is not supported on %s events", in.Predicate.Kind, in.EventRef.Level)
	}

	ev, err := e.loadEvent(ctx, in.EventRef)
	if err != nil {
		return nil, err
	}
	if ev.status == domain.EventEnded {
		return nil, domain.InvalidTransitionf("event %s already ended", in.EventRef)
	}
	// evento em andamento só aceita rascunho: apostar depois de parciais conhecidos não vale
	if ev.status == domain.EventStarted && !in.Draft {
		return nil, domain.InvalidTransitionf("event %s already started", in.EventRef)
	}
	if err := e.checkTargets(ctx, in.Predicate, in.EventRef, ev.teams); err != nil {
		return nil, err
	}

	status := domain.WagerBettable
	if in.Draft {
		status = domain.WagerCreated
	}
	w := &domain.Wager{
		ID:                 e.NewID(),
		Status:             status,
		WagerType:          in.WagerType,
		EventRef:           in.EventRef,
		Predicate:          in.Predicate,
		AgreeCreditsBet:    decimal.Zero,
		DisagreeCreditsBet: decimal.Zero,
		CreatedAt:          e.Now(),
	}
	if err := e.Store.CreateWager(ctx, w); err != nil {
		return nil, err
	}
	// o evento pode ter começado entre a checagem e a gravação
	if status == domain.WagerBettable {
		if ev, err := e.loadEvent(ctx, in.EventRef); err == nil && ev.status != domain.EventScheduled {
			if _, err := e.closeBetting(ctx, w); err != nil {
				return nil, err
			}
		}
	}

	e.Log.Info("wager created",
		zap.String("wager_id", w.ID),
		zap.String("event", w.EventRef.String()),
		zap.String("kind", string(w.Predicate.Kind)))
	e.publish(ctx, topics.WagerUpdated, wagerUpdated(w, e.Now()))
	return w, nil
}

// checkTargets resolve times e jogadores referenciados pelo predicado.
// Quando o evento tem os dois times definidos (partida, série), o alvo precisa participar dele.
func (e *Engine) checkTargets(ctx context.Context, p domain.Predicate, ref domain.EventRef, participants []string) error {
	team := func(id string) error {
		if _, err := e.Store.GetTeam(ctx, id); err != nil {
			return err
		}
		if len(participants) > 0 && !slices.Contains(participants, id) {
			return domain.Validationf("team %s does not take part in %s", id, ref)
		}
		return nil
	}
	player := func(id string) error {
		pl, err := e.Store.GetPlayer(ctx, id)
		if err != nil {
			return err
		}
		if len(participants) > 0 && !slices.Contains(participants, pl.TeamRef) {
			return domain.Validationf("player %s does not take part in %s", id, ref)
		}
		return nil
	}

	switch p.Kind {
	case domain.PredicateWinnerEquals, domain.PredicateFirstBloodEquals:
		return team(p.TeamID)
	case domain.PredicateMVPEquals:
		return player(p.PlayerID)
	case domain.PredicateAttributeCompare:
		switch p.Compare.Target.Kind {
		case domain.TargetTeam:
			return team(p.Compare.Target.ID)
		case domain.TargetPlayer:
			return player(p.Compare.Target.ID)
		case domain.TargetEvent:
			if id := p.Compare.Target.ID; id != "" && id != ref.ID {
				return domain.Validationf("event target %s does not match %s", id, ref)
			}
		}
	}
	return nil
}

// OpenWager libera apostas em um wager criado como rascunho
func (e *Engine) OpenWager(ctx context.Context, wagerID string) (*domain.Wager, error) {
	cur, err := e.Store.GetWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	ev, err := e.loadEvent(ctx, cur.EventRef)
	if err != nil {
		return nil, err
	}
	if ev.status != domain.EventScheduled {
		return nil, domain.InvalidTransitionf("event %s is %s, cannot open wager %s", cur.EventRef, ev.status, wagerID)
	}
	ok, err := e.Store.TransitionWager(ctx, wagerID, domain.WagerCreated, domain.WagerBettable)
	if err != nil {
		return nil, err
	}
	w, err := e.Store.GetWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.InvalidTransitionf("wager %s is %s, cannot open", wagerID, w.Status)
	}
	e.invalidate(ctx, wagerID)
	e.publish(ctx, topics.WagerUpdated, wagerUpdated(w, e.Now()))
	return w, nil
}

// EventStarted marca o evento e os eventos que o contêm (série, torneio,
// temporada) como iniciados e fecha as apostas dos wagers bettable de todos
// eles. Devolve quantos wagers foram fechados.
func (e *Engine) EventStarted(ctx context.Context, ref domain.EventRef) (int, error) {
	if !ref.Level.Valid() || ref.ID == "" {
		return 0, domain.Validationf("invalid event ref %q", ref)
	}
	closed, err := e.startEvent(ctx, ref)
	if err != nil {
		return closed, err
	}
	n, err := e.startAncestors(ctx, ref)
	closed += n
	if err != nil {
		return closed, err
	}
	e.Log.Info("event started", zap.String("event", ref.String()), zap.Int("wagers_closed", closed))
	return closed, nil
}

func (e *Engine) startEvent(ctx context.Context, ref domain.EventRef) (int, error) {
	if err := e.Store.StartEvent(ctx, ref); err != nil {
		return 0, err
	}
	wagers, err := e.Store.ListWagersByEvent(ctx, ref)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, w := range wagers {
		ok, err := e.closeBetting(ctx, w)
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// startAncestors inicia série, torneio e temporada acima do evento. Um
// ancestral já encerrado é ignorado.
func (e *Engine) startAncestors(ctx context.Context, ref domain.EventRef) (int, error) {
	parents, err := e.ancestors(ctx, ref)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, p := range parents {
		n, err := e.startEvent(ctx, p)
		closed += n
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			continue
		}
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// ancestors sobe a hierarquia partida -> série -> torneio -> temporada
func (e *Engine) ancestors(ctx context.Context, ref domain.EventRef) ([]domain.EventRef, error) {
	var out []domain.EventRef
	for {
		var parent domain.EventRef
		switch ref.Level {
		case domain.LevelMatch:
			m, err := e.Store.GetMatch(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			parent = domain.EventRef{Level: domain.LevelSeries, ID: m.SeriesRef}
		case domain.LevelSeries:
			s, err := e.Store.GetSeries(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			parent = domain.EventRef{Level: domain.LevelTournament, ID: s.TournamentRef}
		case domain.LevelTournament:
			t, err := e.Store.GetTournament(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			parent = domain.EventRef{Level: domain.LevelSeason, ID: t.SeasonRef}
		}
		if parent.ID == "" {
			return out, nil
		}
		out = append(out, parent)
		ref = parent
	}
}

// closeBetting é a barreira bettable -> ongoing; depois dela nenhum PlaceBet passa
func (e *Engine) closeBetting(ctx context.Context, w *domain.Wager) (bool, error) {
	if w.Status != domain.WagerBettable {
		return false, nil
	}
	var ok bool
	err := e.Retry.Do(ctx, func() error {
		var err error
		ok, err = e.Store.TransitionWager(ctx, w.ID, domain.WagerBettable, domain.WagerOngoing)
		return err
	})
	if err != nil || !ok {
		return false, err
	}
	w.Status = domain.WagerOngoing
	e.invalidate(ctx, w.ID)
	e.publish(ctx, topics.WagerUpdated, wagerUpdated(w, e.Now()))
	return true, nil
}

type PlaceBetInput struct {
	UserID  string
	WagerID string
	Side    domain.Side
	Credits decimal.Decimal
}

type PlaceBetResult struct {
	Bet        domain.Bet      `json:"bet"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// PlaceBet debita o usuário e registra a aposta no pool numa única operação atômica
func (e *Engine) PlaceBet(ctx context.Context, in PlaceBetInput) (res *PlaceBetResult, err error) {
	defer func() {
		if e.Hooks.OnBetPlaced == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = string(domain.KindOf(err))
		}
		e.Hooks.OnBetPlaced(outcome)
	}()

	if in.UserID == "" || in.WagerID == "" {
		return nil, domain.Validationf("userId and wagerId are required")
	}
	if !in.Side.Valid() {
		return nil, domain.Validationf("invalid side %q", in.Side)
	}
	if !in.Credits.IsPositive() {
		return nil, domain.Validationf("credits must be positive")
	}
	if !in.Credits.Equal(in.Credits.Truncate(domain.PayoutPlaces)) {
		return nil, domain.Validationf("credits support at most %d decimal places", domain.PayoutPlaces)
	}

	bet := domain.Bet{
		ID:        e.NewID(),
		UserID:    in.UserID,
		WagerID:   in.WagerID,
		Side:      in.Side,
		Credits:   in.Credits,
		CreatedAt: e.Now(),
	}
	var balance decimal.Decimal
	err = e.Retry.Do(ctx, func() error {
		var err error
		balance, err = e.Store.PlaceBet(ctx, &bet)
		return err
	})
	if err != nil {
		e.Log.Debug("bet rejected",
			zap.String("wager_id", in.WagerID),
			zap.String("user_id", in.UserID),
			zap.Error(err))
		return nil, err
	}

	e.Log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("wager_id", bet.WagerID),
		zap.String("user_id", bet.UserID),
		zap.String("side", string(bet.Side)),
		zap.String("credits", bet.Credits.String()))

	e.invalidate(ctx, bet.WagerID)
	if w, err := e.Store.GetWager(ctx, bet.WagerID); err == nil {
		e.publish(ctx, topics.WagerUpdated, wagerUpdated(w, e.Now()))
	}
	e.publishUser(ctx, bet.UserID, "bet", bet.WagerID)
	return &PlaceBetResult{Bet: bet, NewBalance: balance}, nil
}

// GetWagerView devolve a projeção do wager, usando o cache quando houver
func (e *Engine) GetWagerView(ctx context.Context, wagerID string) (*domain.WagerView, error) {
	if e.Cache != nil {
		v, ok, err := e.Cache.Get(ctx, wagerID)
		if err != nil {
			e.Log.Warn("view cache get failed", zap.String("wager_id", wagerID), zap.Error(err))
		} else if ok {
			return v, nil
		}
	}

	w, err := e.Store.GetWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	v := domain.NewWagerView(w)
	if e.Cache != nil {
		if err := e.Cache.Set(ctx, v); err != nil {
			e.Log.Warn("view cache set failed", zap.String("wager_id", wagerID), zap.Error(err))
		}
	}
	return &v, nil
}

func (e *Engine) publishUser(ctx context.Context, userID, reason, wagerID string) {
	u, err := e.Store.GetUser(ctx, userID)
	if err != nil {
		e.Log.Warn("load user for notification", zap.String("user_id", userID), zap.Error(err))
		return
	}
	e.publish(ctx, topics.UserUpdated, events.UserUpdated{
		UserID:                u.ID,
		Credits:               u.Credits,
		EarnedCredits:         u.EarnedCredits,
		LifetimeEarnedCredits: u.LifetimeEarnedCredits,
		Reason:                reason,
		WagerID:               wagerID,
		Ts:                    e.Now(),
	})
}

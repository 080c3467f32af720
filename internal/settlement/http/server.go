package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/dto"
	"github.com/radieske/esports-wager-settlement/internal/settlement/service"
)

// HeaderUserID carrega a identidade do usuário, já autenticada na borda
const HeaderUserID = "X-User-ID"

// Engine é o subconjunto do motor exposto pela API
type Engine interface {
	CreateWager(ctx context.Context, in service.CreateWagerInput) (*domain.Wager, error)
	OpenWager(ctx context.Context, wagerID string) (*domain.Wager, error)
	GetWagerView(ctx context.Context, wagerID string) (*domain.WagerView, error)
	PlaceBet(ctx context.Context, in service.PlaceBetInput) (*service.PlaceBetResult, error)
	EventStarted(ctx context.Context, ref domain.EventRef) (int, error)
	MatchConcluded(ctx context.Context, in service.MatchConcludedInput) (*service.Summary, error)
}

// Queue recebe conclusões de partida para processamento assíncrono
type Queue interface {
	Enqueue(ctx context.Context, in service.MatchConcludedInput) error
}

// API expõe o motor de liquidação via REST
type API struct {
	Log         *zap.Logger
	Engine      Engine
	Queue       Queue // opcional; sem fila, ?async=true é rejeitado
	CORSOrigins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/wagers", a.createWager)
		r.Get("/wagers/{id}", a.getWager)
		r.Post("/wagers/{id}/open", a.openWager)
		r.Post("/wagers/{id}/bets", a.placeBet)
		r.Post("/events/{level}/{id}/start", a.eventStarted)
		r.Post("/matches/{id}/conclude", a.concludeMatch)
	})
	return r
}

func (a *API) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	wager, err := a.Engine.CreateWager(r.Context(), service.CreateWagerInput{
		EventRef:  domain.EventRef{Level: domain.EventLevel(req.EventLevel), ID: req.EventID},
		WagerType: req.WagerType,
		Predicate: req.Predicate,
		Draft:     req.Draft,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreateWagerResponse{WagerID: wager.ID, Status: string(wager.Status)})
}

func (a *API) getWager(w http.ResponseWriter, r *http.Request) {
	v, err := a.Engine.GetWagerView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) openWager(w http.ResponseWriter, r *http.Request) {
	wager, err := a.Engine.OpenWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CreateWagerResponse{WagerID: wager.ID, Status: string(wager.Status)})
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: HeaderUserID + " header required"})
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	res, err := a.Engine.PlaceBet(r.Context(), service.PlaceBetInput{
		UserID:  userID,
		WagerID: chi.URLParam(r, "id"),
		Side:    domain.Side(req.Side),
		Credits: req.Credits,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:      res.Bet.ID,
		WagerID:    res.Bet.WagerID,
		Side:       string(res.Bet.Side),
		Credits:    res.Bet.Credits,
		NewBalance: res.NewBalance,
	})
}

func (a *API) eventStarted(w http.ResponseWriter, r *http.Request) {
	ref := domain.EventRef{Level: domain.EventLevel(chi.URLParam(r, "level")), ID: chi.URLParam(r, "id")}
	n, err := a.Engine.EventStarted(r.Context(), ref)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.EventStartedResponse{Event: ref.String(), WagersClosed: n})
}

func (a *API) concludeMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.ConcludeMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	in := service.MatchConcludedInput{
		MatchID:        chi.URLParam(r, "id"),
		Results:        req.Results,
		FirstBlood:     req.FirstBlood,
		WentToOvertime: req.WentToOvertime,
		EndTournament:  req.EndTournament,
		EndSeason:      req.EndSeason,
	}

	// cascatas longas (fim de temporada) podem ir para a fila
	if r.URL.Query().Get("async") == "true" {
		if a.Queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "async settlement unavailable"})
			return
		}
		if err := a.Queue.Enqueue(r.Context(), in); err != nil {
			a.Log.Error("enqueue match concluded", zap.String("match_id", in.MatchID), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "queue unavailable"})
			return
		}
		writeJSON(w, http.StatusAccepted, dto.QueuedResponse{MatchID: in.MatchID, Status: "QUEUED"})
		return
	}

	sum, err := a.Engine.MatchConcluded(r.Context(), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// statusOf traduz o Kind do erro de domínio em status HTTP
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case domain.KindInvalidStateTransition:
		return http.StatusConflict
	case domain.KindConcurrencyConflict:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, dto.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: string(domain.KindOf(err))})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Targets são os serviços atrás do gateway
type Targets struct {
	Settlement string // REST do motor (settlement-service)
	Broadcast  string // WebSocket (broadcast-service)
}

func rp(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s url %q", name, to)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return p, nil
}

// Router monta as rotas públicas:
//
//	/api/settlement/* -> settlement-service
//	/ws               -> broadcast-service (upgrade repassado pelo proxy)
func Router(log *zap.Logger, t Targets, origins []string) (http.Handler, error) {
	settlement, err := rp(log, "settlement", t.Settlement)
	if err != nil {
		return nil, err
	}
	broadcast, err := rp(log, "broadcast", t.Broadcast)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Handle("/api/settlement/*", http.StripPrefix("/api/settlement", settlement))
	r.Handle("/ws", broadcast)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r, nil
}

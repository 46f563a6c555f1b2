package mux

import (
	"context"
	"net/http"

	"flip7-server/internal/rng"
	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"
	"flip7-server/pkg/room"

	"github.com/arl/statsviz"
	gmux "github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	ctxGameKey ctxKey = iota
)

// Options configures the HTTP mux
type Options struct {
	// Game are the rules new games are created with
	Game flip7.Options
	// Statsviz mounts the runtime dashboard under /debug/statsviz/
	Statsviz bool
}

// Mux handles HTTP requests
type Mux struct {
	*gmux.Router
	version  string
	options  Options
	registry *registry.Registry
	pitBoss  *room.PitBoss
	seeds    rng.Generator
	logger   logrus.FieldLogger
}

// NewMux returns a new HTTP mux
func NewMux(logger logrus.FieldLogger, version string, reg *registry.Registry, pitBoss *room.PitBoss, opts Options) *Mux {
	this := &Mux{
		Router:   gmux.NewRouter(),
		version:  version,
		options:  opts,
		registry: reg,
		pitBoss:  pitBoss,
		seeds:    rng.Crypto{},
		logger:   logger,
	}

	{
		r := this.Router
		r.Methods(http.MethodGet).Path("/health").Handler(this.getHealth())
		r.Methods(http.MethodGet).Path("/game").Handler(this.getGame())
		r.Methods(http.MethodPost).Path("/game").Handler(this.postGame())

		gr := r.PathPrefix("/game/{id:[A-Za-z0-9_.-]{1,64}}").Subrouter()
		gr.Use(this.gameMiddleware)

		gr.Methods(http.MethodGet).Path("").Handler(this.getGameID())
		gr.Methods(http.MethodDelete).Path("").Handler(this.deleteGameID())
		gr.Methods(http.MethodGet).Path("/ws").Handler(this.getGameIDWS())
	}

	if opts.Statsviz {
		smux := http.NewServeMux()
		if err := statsviz.Register(smux); err != nil {
			logger.WithError(err).Error("could not register statsviz")
		} else {
			this.Router.PathPrefix("/debug/statsviz").Handler(smux)
		}
	}

	return this
}

// gameMiddleware answers 404 for unknown games and stores the game id in the context
func (m *Mux) gameMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gameID := gmux.Vars(r)["id"]
		if _, err := m.registry.Snapshot(gameID); err != nil {
			writeGameError(w, err)
			return
		}

		newCtx := context.WithValue(r.Context(), ctxGameKey, gameID)
		next.ServeHTTP(w, r.WithContext(newCtx))
	})
}

func gameIDFromContext(ctx context.Context) string {
	return ctx.Value(ctxGameKey).(string)
}

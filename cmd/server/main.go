package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flip7-server/internal/broker"
	"flip7-server/internal/config"
	"flip7-server/internal/mux"
	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"
	"flip7-server/pkg/room"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const readTimeout = time.Second * 5
const writeTimeout = time.Second * 10
const shutdownTimeout = time.Second * 10

// Version is the server version
var Version = "v0.0.0-dev"

var addr = flag.String("addr", "", "the listen address, overrides the configuration")

func main() {
	flag.Parse()
	setupLogger()

	cfg := config.Instance()
	if *addr != "" {
		cfg.Addr = *addr
	}

	publisher, err := broker.New(logrus.StandardLogger(), cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		logrus.WithError(err).Fatal("could not connect to nats")
	}
	defer publisher.Close()

	reg := registry.New(logrus.StandardLogger())
	defer reg.Close()

	pitBoss := room.NewPitBoss(logrus.StandardLogger(), reg, publisher, room.Options{
		QueueSize:    cfg.Game.QueueSize,
		IdleTimeout:  cfg.IdleTimeout(),
		ReapInterval: cfg.ReapInterval(),
	})
	pitBoss.StartShift()

	m := mux.NewMux(logrus.StandardLogger(), Version, reg, pitBoss, mux.Options{
		Game: flip7.Options{
			TargetScore: cfg.Game.TargetScore,
			MaxPlayers:  cfg.Game.MaxPlayers,
		},
		Statsviz: cfg.Debug.Statsviz,
	})

	c := cors.New(cors.Options{
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingHandler(c.Handler(m)),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).WithField("version", Version).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("could not shut down cleanly")
	}

	pitBoss.EndShift()
}

func loggingHandler(next http.Handler) http.Handler {
	if config.Instance().Log.DisableAccessLogs {
		return next
	}

	return handlers.CombinedLoggingHandler(os.Stdout, next)
}

func setupLogger() {
	if lvl := config.Instance().Log.Level; lvl != "" {
		level, err := logrus.ParseLevel(lvl)
		if err != nil {
			logrus.WithError(err).Fatal("could not parse level")
		}

		logrus.SetLevel(level)
	}

	if strings.ToLower(config.Instance().Log.Format) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

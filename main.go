package main

import (
	"log"
	"net/http"

	"asaas-contaazul-relay/internal/config"
	"asaas-contaazul-relay/internal/contaazul"
	"asaas-contaazul-relay/internal/db"
	"asaas-contaazul-relay/internal/logging"
	"asaas-contaazul-relay/internal/metrics"
	"asaas-contaazul-relay/internal/relay"
	"asaas-contaazul-relay/internal/server"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics)

	db.RunMigrations(cfg.Database.URL, "migrations")

	dbpool, err := db.GetPool(cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer dbpool.Close()

	eventRepo := db.NewEventRepository(dbpool)
	tokenRepo := db.NewTokenRepository(dbpool)

	oauth := contaazul.NewOAuth(cfg.ContaAzul, tokenRepo, logger)
	client := contaazul.NewClient(cfg.ContaAzul, logger)

	processor := relay.NewProcessor(cfg, eventRepo, oauth, client, logger)

	srv := server.New(cfg, processor, oauth, logger)

	logger.Info("Starting server", "port", cfg.Server.Port, "env", cfg.Env)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, srv.Routes()))
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tmendes/pouch/internal/config"
	"github.com/tmendes/pouch/internal/database"
	pouchHttp "github.com/tmendes/pouch/internal/http"
	budgetHandler "github.com/tmendes/pouch/internal/http/budget"
	txHandler "github.com/tmendes/pouch/internal/http/ledgertx"
	"github.com/tmendes/pouch/internal/ledger"
	ledgerStore "github.com/tmendes/pouch/internal/ledger/store"
	"github.com/tmendes/pouch/internal/resolver"
	resolverStore "github.com/tmendes/pouch/internal/resolver/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(context.Background(), cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		resolverService = resolver.NewService(resolverStore.New(db))
		ledgerService   = ledger.NewService(ledgerStore.New(db), resolverService, ledger.Rules{
			DateGrace:      cfg.Ledger.DateGrace,
			MaxDescription: cfg.Ledger.MaxDescription,
		})
	)

	var (
		transactionH = txHandler.NewHandler(ledgerService)
		budgetH      = budgetHandler.NewHandler(resolverService)
	)

	router := pouchHttp.New(cfg.Auth.JWTSecret, cfg.Server.AllowedOrigins, transactionH, budgetH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/saeidalz13/battleship-escrow/api"
	"github.com/saeidalz13/battleship-escrow/db"
	"github.com/saeidalz13/battleship-escrow/db/sqlc"
	"github.com/saeidalz13/battleship-escrow/internal/config"
	mc "github.com/saeidalz13/battleship-escrow/models/connection"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/escrow"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

func main() {
	if os.Getenv("STAGE") != config.StageProd {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file loaded:", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store  ledger.Store
		optFns []api.Option
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		conn := db.MustConnectToDb(cfg.DatabaseUrl)
		store = db.NewRecordStore(conn)
		dbManager := sqlc.NewDbManager(sqlc.New(conn), api.MustGetServerIpNet())
		optFns = append(optFns, api.WithAnalytics(dbManager.Analytics))

	case config.StoreSqlite:
		conn, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			panic(err)
		}
		store = db.NewRecordStore(conn)

	default:
		store = ledger.NewMemoryStore()
	}
	defer store.Close()

	registry := delegation.NewRegistry(store, cfg.CommitFlushInterval)
	go registry.Run(ctx)

	processor := api.NewProcessor(registry, escrow.NewVault(cfg.Faucet), optFns...)

	authority := cfg.AuthorityIdentity()
	if _, err := processor.GetConfig(ctx); err != nil {
		if _, err := processor.InitConfig(ctx, api.DurableSigner(authority), authority, cfg.MaxGridSize, cfg.FeeBps); err != nil {
			panic(err)
		}
		log.Printf("config initialized, authority: %s\n", authority)
	}

	sessionManager := mc.NewBattleshipSessionManager()
	go sessionManager.CleanupPeriodically()

	mux := http.NewServeMux()
	var rpOpts []api.RequestProcessorOption
	if cfg.SignedSessions {
		rpOpts = append(rpOpts, api.WithSignedSessions(cfg.SessionTokenWindow))
	} else {
		log.Println("signed sessions disabled: the identity query param is trusted as is")
	}
	mux.Handle("GET /battleship", api.NewRequestProcessor(sessionManager, processor, rpOpts...))

	server := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", cfg.Port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("Listening to port %d (store: %s, max grid: %d)\n", cfg.Port, cfg.StoreDriver, cfg.MaxGridSize)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalln(err)
	}

	// Working copies only live in memory, so everything delegated is
	// written back before the store closes.
	if err := registry.CommitAll(context.Background()); err != nil {
		log.Println("delegated records left uncommitted:", err)
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/InsideOutbtc/nock-bridge/internal/bridge"
	"github.com/InsideOutbtc/nock-bridge/internal/config"
	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/InsideOutbtc/nock-bridge/internal/http"
	"github.com/InsideOutbtc/nock-bridge/internal/ledger"
	"github.com/InsideOutbtc/nock-bridge/internal/oracle"
	"github.com/InsideOutbtc/nock-bridge/internal/state"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	State           *state.State
	Bridge          *bridge.Bridge
	TokenLedger     *ledger.TokenLedger
	Oracle          *oracle.Cache
	HTTPServer      *http.HTTPServer
}

func NewApplication() *Application {
	config.InitConfig()

	dbm := db.NewDatabaseManager()
	st := state.InitializeState(dbm)
	tokenLedger := ledger.NewTokenLedger(dbm)
	engine := bridge.NewBridge(st, dbm, tokenLedger)
	cache := oracle.NewCacheWithDB(dbm, config.AppConfig.OracleHistorySize, config.AppConfig.OracleStaleness)
	httpServer := http.NewHTTPServer(engine, st, cache, tokenLedger)

	if !st.Initialized() {
		err := engine.Initialize(bridge.InitializeParams{
			Authority:      config.AppConfig.Authority,
			Validators:     config.AppConfig.Validators,
			Threshold:      config.AppConfig.Threshold,
			FeeRateBps:     config.AppConfig.FeeRateBps,
			DailyLimit:     config.AppConfig.DailyLimit,
			EmergencyDelay: config.AppConfig.EmergencyDelay,
		})
		if err != nil && !errors.Is(err, bridge.ErrAlreadyInitialized) {
			log.Fatalf("Failed to initialize bridge state: %v", err)
		}
	}

	return &Application{
		DatabaseManager: dbm,
		State:           st,
		Bridge:          engine,
		TokenLedger:     tokenLedger,
		Oracle:          cache,
		HTTPServer:      httpServer,
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.watchEvents(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	log.Info("Server stopped")
}

// watchEvents drains the event bus into the operator log.
func (app *Application) watchEvents(ctx context.Context) {
	depositCh := make(chan interface{}, 16)
	withdrawCh := make(chan interface{}, 16)
	releaseCh := make(chan interface{}, 16)
	pauseCh := make(chan interface{}, 4)
	unpauseCh := make(chan interface{}, 4)
	configCh := make(chan interface{}, 4)

	app.State.EventBus.Subscribe(state.DepositProcessed, depositCh)
	app.State.EventBus.Subscribe(state.WithdrawProcessed, withdrawCh)
	app.State.EventBus.Subscribe(state.ReleaseCreated, releaseCh)
	app.State.EventBus.Subscribe(state.BridgePaused, pauseCh)
	app.State.EventBus.Subscribe(state.BridgeUnpaused, unpauseCh)
	app.State.EventBus.Subscribe(state.ConfigUpdated, configCh)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-depositCh:
			log.Infof("Event DepositProcessed: %+v", ev)
		case ev := <-withdrawCh:
			log.Infof("Event WithdrawProcessed: %+v", ev)
		case ev := <-releaseCh:
			log.Infof("Event ReleaseCreated: %+v", ev)
		case ev := <-pauseCh:
			log.Warnf("Event BridgePaused: %+v", ev)
		case ev := <-unpauseCh:
			log.Infof("Event BridgeUnpaused: %+v", ev)
		case ev := <-configCh:
			log.Infof("Event ConfigUpdated: nonce %+v", ev)
		}
	}
}

func main() {
	app := NewApplication()
	app.Run()
}

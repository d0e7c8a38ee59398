// Command xrail-server wires the ingestion scheduler, routing solver, and
// execution orchestrator behind the thin HTTP surface of spec.md §6. The
// core subsystems this binary assembles are the specified deliverable;
// the HTTP layer itself is the out-of-scope "presentation" collaborator,
// kept intentionally minimal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/execution"
	"github.com/r3e-network/xrail/internal/ingest"
	"github.com/r3e-network/xrail/internal/platform/cache"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/credentials"
	"github.com/r3e-network/xrail/internal/platform/durable"
	"github.com/r3e-network/xrail/internal/platform/regulatory"
	"github.com/r3e-network/xrail/internal/platform/transport"
	"github.com/r3e-network/xrail/internal/routing"
	"github.com/r3e-network/xrail/pkg/config"
	"github.com/r3e-network/xrail/pkg/logger"
	"github.com/r3e-network/xrail/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides CONFIG_FILE)")
	regulatoryPath := flag.String("regulatory", "", "path to the regulatory constraints JSON document")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("CONFIG_FILE", *configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logger.New("xrail-server", logger.Config{
		Level: cfg.Logging.Level,
		JSON:  strings.EqualFold(cfg.Logging.Format, "json"),
		File:  cfg.Logging.File,
	})

	clk := clock.NewReal()
	edgeCache := buildCache(cfg.Cache)
	store := buildDurableStore(cfg.Database)
	credStore := buildCredentials(cfg.Credentials)

	var regTable *regulatory.Table
	if *regulatoryPath != "" {
		regTable, err = regulatory.Load(*regulatoryPath)
		if err != nil {
			log.WithError(err).Fatal("load regulatory constraints")
		}
	} else {
		regTable = regulatory.Empty()
	}

	httpTransport := transport.NewHTTPTransport(nil, transport.DefaultRateLimitConfig())

	scheduler := ingest.NewScheduler(defaultAdapters(), ingest.Config{
		Transport:   httpTransport,
		Credentials: credStore,
		Clock:       clk,
		Cache:       edgeCache,
		Store:       store,
		Log:         log,
		Periods: ingest.Periods{
			FastSeconds:     cfg.Refresh.FastSeconds,
			SlowSeconds:     cfg.Refresh.SlowSeconds,
			SnapshotSeconds: cfg.Refresh.SnapshotSeconds,
		},
	})
	scheduler.WithTickSkippedHook(func(class ingest.CadenceClass) {
		metrics.RecordSchedulerTickSkipped(string(class))
	})
	scheduler.WithObservationHooks(metrics.ObservationHooks("ingest", "adapter_tick"))

	solver := routing.EnumeratorSolver{}

	dispatcher := execution.NewDispatcher(buildExecutors(cfg, httpTransport, credStore, clk))
	execStore := execution.NewStore(store, cfg.Execution.HistoryCap)
	orchestrator := execution.NewOrchestrator(execStore, dispatcher, solver, scheduler.Store().Snapshot, clk, log, execution.Config{
		AIRerouteEnabled: cfg.Execution.AIRerouteEnabled,
		RerouteThresholds: execution.RerouteThresholds{
			CostPercentDrop: cfg.Execution.RerouteThresholds.CostPercentDrop,
			ETAPercentDrop:  cfg.Execution.RerouteThresholds.ETAPercentDrop,
			ReliabilityRise: cfg.Execution.RerouteThresholds.ReliabilityRise,
		},
		RoutingOptions: routingOptionsFrom(cfg, regTable),
	})
	orchestrator.WithObservationHooks(metrics.ObservationHooks("execution", "segment"))

	api := &server{
		cfg:          cfg,
		log:          log,
		scheduler:    scheduler,
		solver:       solver,
		orchestrator: orchestrator,
		regTable:     regTable,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("start ingest scheduler")
	}

	for _, d := range []corekit.Descriptor{scheduler.Describe(), orchestrator.Describe()} {
		log.WithField("layer", string(d.Layer)).
			WithField("capabilities", strings.Join(d.Capabilities, ",")).
			WithField("component", d.Name).
			Info("component ready")
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler: api.router(),
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("xrail-server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = scheduler.Stop(shutdownCtx)
	log.Info("xrail-server stopped")
}

func routingOptionsFrom(cfg *config.Config, reg *regulatory.Table) routing.Options {
	caps := make(map[edge.SegmentClass]int, len(cfg.Routing.MaxPerSegmentClass))
	for class, max := range cfg.Routing.MaxPerSegmentClass {
		caps[edge.SegmentClass(class)] = max
	}
	return routing.Options{
		MaxHops:            cfg.Routing.HopLimit,
		ReliabilityFloor:   cfg.Routing.MinReliability,
		Regulatory:         reg,
		MaxPerSegmentClass: caps,
		K:                  cfg.Routing.CandidateK,
		Weights: routing.Weights{
			Alpha: cfg.Routing.Weights.CostWeight,
			Beta:  cfg.Routing.Weights.ETAWeight,
			Gamma: cfg.Routing.Weights.ReliabilityWeight,
		},
	}
}

func buildCache(cfg config.CacheConfig) cache.Cache {
	if cfg.Addr == "" {
		return cache.NewMemory()
	}
	return cache.NewRedis(cfg.Addr, cfg.Password, cfg.DB)
}

func buildDurableStore(cfg config.DatabaseConfig) durable.Store {
	if cfg.DSN == "" && cfg.Host == "" {
		return durable.NewMemory()
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.ConnectionString()
	}
	store, err := durable.NewPostgres(context.Background(), dsn, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.MigrateOnStart)
	if err != nil {
		log.Fatalf("connect durable store: %v", err)
	}
	return store
}

func buildCredentials(cfg config.CredentialsConfig) credentials.Store {
	if cfg.Source == "azure_keyvault" && cfg.AzureVaultURL != "" {
		store, err := credentials.NewAzureKeyVault(cfg.AzureVaultURL)
		if err != nil {
			log.Fatalf("configure azure key vault credentials: %v", err)
		}
		return store
	}
	return credentials.NewEnv()
}

// defaultAdapters assembles one adapter instance per segment class across
// the major USD/EUR/GBP/INR/USDC/BTC corridor, per §4.1's "given a
// configured target set" contract.
func defaultAdapters() []ingest.Adapter {
	majors := []ingest.Target{
		{FromAsset: "USD", ToAsset: "EUR"},
		{FromAsset: "EUR", ToAsset: "USD"},
		{FromAsset: "USD", ToAsset: "GBP"},
		{FromAsset: "USD", ToAsset: "INR"},
	}
	cryptoPairs := []ingest.Target{
		{FromAsset: "USD", ToAsset: "USDC"},
		{FromAsset: "USDC", ToAsset: "USD"},
		{FromAsset: "USDC", ToAsset: "BTC", FromNetwork: "ethereum", ToNetwork: "ethereum"},
	}
	bridgePairs := []ingest.Target{
		{FromAsset: "USDC", FromNetwork: "ethereum", ToAsset: "USDC", ToNetwork: "polygon"},
	}
	rampPairs := []ingest.Target{
		{FromAsset: "USD", ToAsset: "USDC", ToNetwork: "ethereum"},
	}
	offRampPairs := []ingest.Target{
		{FromAsset: "USDC", FromNetwork: "ethereum", ToAsset: "USD"},
	}

	return []ingest.Adapter{
		ingest.NewFrankfurterAdapter(majors),
		ingest.NewOpenExchangeRatesAdapter(majors),
		ingest.NewBankRailAdapter("swiftnet", majors),
		ingest.NewKrakenAdapter(cryptoPairs),
		ingest.NewBridgeAdapter("wormhole", bridgePairs),
		ingest.NewOnRampAdapter("moonpay", rampPairs),
		ingest.NewOffRampAdapter("moonpay", offRampPairs),
	}
}

// buildExecutors registers one SegmentExecutor per class. In simulation mode
// (the config default) every class shares a single SimulatedExecutor, since
// §4.7's simulation branch is provider-agnostic. In real mode a
// ProviderExecutor is registered per class using the create/fund/poll shape
// documented for that class in §4.7's per-class specifics; a production
// deployment would instead register one ProviderExecutor per concrete
// provider and dispatch within the class by edge.Provider.
func buildExecutors(cfg *config.Config, t transport.Transport, creds credentials.Store, clk clock.Clock) map[edge.SegmentClass]execution.SegmentExecutor {
	if cfg.Execution.Mode != "real" {
		sim := execution.NewSimulatedExecutor(0)
		return map[edge.SegmentClass]execution.SegmentExecutor{
			edge.ClassFX:       sim,
			edge.ClassCrypto:   sim,
			edge.ClassBridge:   sim,
			edge.ClassOnRamp:   sim,
			edge.ClassOffRamp:  sim,
			edge.ClassBankRail: sim,
		}
	}

	polls, interval := execution.PollConfirmationDefaults()
	if cfg.Execution.ConfirmationPolls > 0 {
		polls = cfg.Execution.ConfirmationPolls
	}
	if cfg.Execution.ConfirmationIntervalSeconds > 0 {
		interval = time.Duration(cfg.Execution.ConfirmationIntervalSeconds) * time.Second
	}

	newExec := func(class edge.SegmentClass, requiresFunding, supportsCancel bool) *execution.ProviderExecutor {
		return execution.NewProviderExecutor(execution.ProviderSpec{
			SegmentClass:         class,
			RequiresFunding:      requiresFunding,
			SupportsCancel:       supportsCancel,
			CreateURLFormat:      "https://rail.example/v1/%s/%s/create",
			FundURLFormat:        "https://rail.example/v1/transfers/%s/fund",
			PollURLFormat:        "https://rail.example/v1/transfers/%s",
			CancelURLFormat:      "https://rail.example/v1/transfers/%s/cancel",
			TxnIDPath:            "id",
			StatusPath:           "status",
			AmountOutPath:        "amount_out",
			FeesPaidPath:         "fees_paid",
			SuccessStatus:        "settled",
			FailureStatus:        "failed",
			ConfirmationPolls:    polls,
			ConfirmationInterval: interval,
		}, t, creds, clk)
	}

	return map[edge.SegmentClass]execution.SegmentExecutor{
		edge.ClassFX:       newExec(edge.ClassFX, true, true),
		edge.ClassBankRail: newExec(edge.ClassBankRail, true, true),
		edge.ClassCrypto:   newExec(edge.ClassCrypto, false, false),
		edge.ClassBridge:   newExec(edge.ClassBridge, false, false),
		edge.ClassOnRamp:   newExec(edge.ClassOnRamp, false, false),
		edge.ClassOffRamp:  newExec(edge.ClassOffRamp, false, false),
	}
}

// server implements the logical interfaces of §6 over HTTP, the thinnest
// possible presentation surface (out-of-scope per §1, wired here only so
// the exposed operations are reachable from outside the process).
type server struct {
	cfg          *config.Config
	log          *logger.Logger
	scheduler    *ingest.Scheduler
	solver       routing.Solver
	orchestrator *execution.Orchestrator
	regTable     *regulatory.Table
}

func (s *server) router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)
	router.Use(s.recoveryMiddleware)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/edges", s.handleGetEdges).Methods(http.MethodGet)
	router.HandleFunc("/routes/optimize", s.handleOptimizeRoute).Methods(http.MethodPost)
	router.HandleFunc("/executions", s.handleExecuteRoute).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}", s.handleGetExecution).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/pause", s.handlePause).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/resume", s.handleResume).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/reroute", s.handleReroute).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/modify", s.handleModify).Methods(http.MethodPost)
	return router
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start).String()).
			Debug("request handled")
	})
}

func (s *server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithField("panic", rec).Error("handler panic")
				writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleGetEdges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	edges := s.scheduler.Store().GetEdges(ingest.Filter{
		Provider:  q.Get("provider"),
		FromAsset: edge.Asset(q.Get("from_asset")),
		ToAsset:   edge.Asset(q.Get("to_asset")),
	})
	writeJSON(w, http.StatusOK, edges)
}

type optimizeRequest struct {
	FromAsset   string  `json:"from_asset"`
	FromNetwork string  `json:"from_network"`
	ToAsset     string  `json:"to_asset"`
	ToNetwork   string  `json:"to_network"`
	Amount      float64 `json:"amount"`
}

func (s *server) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	edges := s.scheduler.Store().Snapshot()
	result, err := routing.OptimizeRoute(r.Context(), s.solver, edges, routing.Request{
		FromAsset:   edge.Asset(req.FromAsset),
		FromNetwork: edge.Network(req.FromNetwork),
		ToAsset:     edge.Asset(req.ToAsset),
		ToNetwork:   edge.Network(req.ToNetwork),
		Amount:      req.Amount,
		Opts:        routingOptionsFrom(s.cfg, s.regTable),
	})
	if err != nil {
		metrics.RecordRouteOptimization("no_route", 0, "enumerator")
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	metrics.RecordRouteOptimization("ok", len(result.Candidates), "enumerator")
	writeJSON(w, http.StatusOK, result)
}

type executeRequest struct {
	Route     edge.Route `json:"route"`
	FromAsset string     `json:"from_asset"`
	ToAsset   string     `json:"to_asset"`
	Amount    float64    `json:"amount"`
	// Parallel is accepted for callers that request grouped segment
	// execution. The edge model's route-continuity invariant leaves no
	// segment pair that can declare independence, so the conservative
	// policy applies and execution proceeds sequentially.
	Parallel bool `json:"parallel"`
}

func (s *server) handleExecuteRoute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Parallel {
		s.log.Debug("parallel execution requested; conservative sequential policy applies")
	}
	id, err := s.orchestrator.Start(r.Context(), req.Route, edge.Asset(req.FromAsset), edge.Asset(req.ToAsset), req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.controlOp(w, r, s.orchestrator.Pause)
}

func (s *server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.controlOp(w, r, s.orchestrator.Resume)
}

type cancelRequest struct {
	CancelPending bool `json:"cancel_pending"`
	// Rollback is reserved: already-settled segments are never reversed
	// automatically (cross-rail compensation is out of scope).
	Rollback bool `json:"rollback"`
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil && r.ContentLength != 0 {
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Rollback {
			s.log.Warn("cancel requested rollback; parameter is reserved and ignored")
		}
	}
	s.controlOp(w, r, s.orchestrator.Cancel)
}

func (s *server) handleReroute(w http.ResponseWriter, r *http.Request) {
	s.controlOp(w, r, s.orchestrator.Reroute)
}

type modifyRequest struct {
	SegmentIndex int             `json:"segment_index"`
	NewSegment   edge.RouteSegment `json:"new_segment"`
}

func (s *server) handleModify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.orchestrator.Modify(r.Context(), id, req.SegmentIndex, req.NewSegment); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	rec, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) controlOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	id := mux.Vars(r)["id"]
	if err := op(r.Context(), id); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	rec, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

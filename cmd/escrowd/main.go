// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/assets/memledger"
	"github.com/certen/escrow-core/pkg/codec"
	"github.com/certen/escrow-core/pkg/config"
	"github.com/certen/escrow-core/pkg/events"
	"github.com/certen/escrow-core/pkg/factory"
	"github.com/certen/escrow-core/pkg/feebank"
	"github.com/certen/escrow-core/pkg/immutables"
	"github.com/certen/escrow-core/pkg/orderintegration"
	"github.com/certen/escrow-core/pkg/store"
	"github.com/certen/escrow-core/pkg/store/memstore"
	"github.com/certen/escrow-core/pkg/store/pgstore"
	"github.com/certen/escrow-core/pkg/timelock"
)

// Demo addresses and timelock stage offsets, used only when -demo drives
// the happy-path walkthrough on startup. Not read from any Config field
// because the demo does not represent a real deployment's parties.
var (
	demoMaker    = common.HexToAddress("0xd3d0000000000000000000000000000000d3ad")
	demoTaker    = common.HexToAddress("0xd3d0000000000000000000000000000000beef")
	demoSrcToken = immutables.TokenIDFromAddress(common.HexToAddress("0xa11ce00000000000000000000000000000a11c"))
	demoDstToken = immutables.TokenIDFromAddress(common.HexToAddress("0xb0b0000000000000000000000000000000b0b0"))
)

// Demo timelock offsets, in seconds from deployment. These use
// production-scale gaps (minutes, not the single-digit seconds a unit test
// uses) so the demo clears Factory's real cross-chain safety margin instead
// of needing it loosened just to run.
const (
	demoSrcWithdrawal         = 300  // 5m
	demoSrcPublicWithdrawal   = 600  // 10m
	demoSrcCancellation       = 3600 // 1h
	demoSrcPublicCancellation = 7200 // 2h
	demoDstWithdrawal         = 60   // 1m
	demoDstPublicWithdrawal   = 300  // 5m
	demoDstCancellation       = 1800 // 30m
)

// health tracks component status for the /health endpoint.
type health struct {
	mu        sync.RWMutex
	status    string
	startTime time.Time
}

func newHealth() *health {
	return &health{status: "starting", startTime: time.Now()}
}

func (h *health) set(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

func (h *health) json() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, _ := json.Marshal(struct {
		Status        string `json:"status"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}{Status: h.status, UptimeSeconds: int64(time.Since(h.startTime).Seconds())})
	return b
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting escrowd")

	var (
		listenAddr  = flag.String("listen-addr", ":8090", "HTTP listen address for health/status endpoints")
		databaseURL = flag.String("database-url", "", "Postgres connection string; empty uses an in-memory store")
		factoryID   = flag.String("factory-id", "", "factory address this node derives escrow addresses from (overrides config)")
		configFile  = flag.String("config", "", "path to a YAML deployment config; overrides ESCROW_* env vars when given")
		demo        = flag.Bool("demo", false, "drive the happy-path swap scenario through the constructed graph on startup, then serve /health")
	)
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *factoryID != "" {
		cfg.FactoryID = common.HexToAddress(*factoryID)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	h := newHealth()

	ledger := memledger.New()
	log.Printf("using in-memory ledger (production deployments back pkg/assets.Ledger with the host chain's real token primitives)")

	var escrowStore store.EscrowStore
	if *databaseURL != "" {
		client, err := pgstore.NewClient(*databaseURL, pgstore.WithLogger(log.New(log.Writer(), "[Store] ", log.LstdFlags)))
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		defer client.Close()
		if err := client.MigrateUp(context.Background()); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		escrowStore = client
		log.Printf("escrow store backed by Postgres")
	} else {
		escrowStore = memstore.New()
		log.Printf("escrow store backed by in-memory map (no -database-url given)")
	}

	fb, err := feebank.New(ledger, nil)
	if err != nil {
		log.Fatalf("failed to construct fee bank: %v", err)
	}

	registry := factory.NewRegistry()
	fcfg := factory.DefaultConfig(cfg.FactoryID)
	fcfg.SrcRescueDelay = cfg.SrcRescueDelay
	fcfg.DstRescueDelay = cfg.DstRescueDelay
	fcfg.SafetyMargin = cfg.SafetyMarginSeconds
	f, err := factory.New(fcfg, registry, ledger, events.NewLogEmitter(nil))
	if err != nil {
		log.Fatalf("failed to construct factory: %v", err)
	}

	whitelist := make(map[common.Address]bool) // populated by the operator's resolver allowlist
	if *demo {
		whitelist[demoTaker] = true // the demo taker has no real access-token balance to check
	}
	integration := orderintegration.New(f, fb, whitelist, cfg.AccessTokenConfig(), cfg.FeeConfig(), nil)

	if *demo {
		if err := runDemo(context.Background(), ledger, escrowStore, cfg.FactoryID, f, integration, registry); err != nil {
			log.Fatalf("demo run failed: %v", err)
		}
	}

	h.set("ok")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(h.json())
	})

	httpServer := &http.Server{Addr: *listenAddr, Handler: mux}

	go func() {
		log.Printf("escrowd API listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down escrowd")
	h.set("stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	fmt.Println("escrowd stopped")
}

// runDemo drives the happy-path scenario end to end through the graph main
// just constructed: it prices and settles a source escrow via
// Integration's LOP callbacks, opens the matching destination escrow
// directly through Factory (the side a resolver's own node would deploy),
// withdraws both legs with the shared secret, and persists each escrow's
// resulting state through EscrowStore the way a resolver process restarting
// mid-swap would need to rehydrate it.
func runDemo(ctx context.Context, ledger *memledger.Ledger, escrowStore store.EscrowStore,
	factoryID common.Address, f *factory.Factory, integration *orderintegration.Integration, registry *factory.Registry) error {
	const (
		makingAmount  = uint64(1_000)
		takingAmount  = uint64(970)
		safetyDeposit = uint64(10)
	)

	secret := [32]byte{0xDE, 0xAD, 0xBE, 0xEF}
	hashlock := immutables.HashSecret(secret)
	orderHash := common.HexToHash("0xd0d0")
	orderCreatedAt := time.Now().Unix()

	tl, err := timelock.New(demoSrcWithdrawal, demoSrcPublicWithdrawal, demoSrcCancellation, demoSrcPublicCancellation,
		demoDstWithdrawal, demoDstPublicWithdrawal, demoDstCancellation)
	if err != nil {
		return fmt.Errorf("demo: timelock.New: %w", err)
	}

	// srcIm mirrors exactly what PostInteraction builds internally (same
	// field order as orderintegration.PostInteraction), undeployed — this is
	// what its address is derived from, before Factory stamps deployed_at.
	srcIm := immutables.EscrowImmutables{
		OrderHash:     orderHash,
		Hashlock:      hashlock,
		Maker:         demoMaker,
		Taker:         demoTaker,
		TokenID:       demoSrcToken,
		Amount:        makingAmount,
		SafetyDeposit: safetyDeposit,
		Timelocks:     tl,
	}
	srcAddr := immutables.DeriveAddress(factoryID, srcIm.Hash(), immutables.Src)
	ledger.Credit(srcAddr, demoSrcToken, makingAmount)
	ledger.Credit(srcAddr, assets.NativeGas, safetyDeposit)

	ed := codec.ExtraData{
		OrderHash:     orderHash,
		Hashlock:      hashlock,
		Maker:         demoMaker,
		TokenID:       demoSrcToken,
		Amount:        makingAmount,
		SafetyDeposit: safetyDeposit,
		Timelocks:     tl,
		Dst: codec.DstParams{
			TokenID:       demoDstToken,
			Amount:        takingAmount,
			SafetyDeposit: safetyDeposit,
		},
	}
	extraData := codec.EncodeFull(ed, []codec.AuctionPoint{
		{Delay: 0, Price: 10_000},
		{Delay: 60, Price: 9_700},
	})

	quoted, err := integration.PreInteraction(orderCreatedAt, orderHash, makingAmount, extraData, orderCreatedAt)
	if err != nil {
		return fmt.Errorf("demo: PreInteraction: %w", err)
	}
	log.Printf("demo: pre-interaction quoted taking_amount=%d at order creation", quoted)

	if _, err := integration.PostInteraction(ctx, orderCreatedAt, orderHash, demoTaker, extraData, orderCreatedAt); err != nil {
		return fmt.Errorf("demo: PostInteraction: %w", err)
	}
	srcEscrow, ok := registry.Lookup(srcAddr)
	if !ok {
		return fmt.Errorf("demo: src escrow %s not found in registry after PostInteraction", srcAddr)
	}
	log.Printf("demo: src escrow settled address=%s", srcEscrow.Address)

	// The escrow's stored identity hash is over the *deployed* immutables
	// (deployed_at included), reconstructed the same way Factory derived it
	// internally, so later authentication of withdraw calls succeeds.
	deployedSrcTimelocks, err := tl.Deploy(orderCreatedAt)
	if err != nil {
		return fmt.Errorf("demo: deploy src timelocks: %w", err)
	}
	deployedSrcIm := srcIm
	deployedSrcIm.Timelocks = deployedSrcTimelocks

	dstIm := immutables.EscrowImmutables{
		OrderHash:     orderHash,
		Hashlock:      hashlock,
		Maker:         demoMaker,
		Taker:         demoTaker,
		TokenID:       demoDstToken,
		Amount:        takingAmount,
		SafetyDeposit: safetyDeposit,
		Timelocks:     tl,
	}

	ledger.Credit(demoTaker, demoDstToken, takingAmount)
	ledger.Credit(demoTaker, assets.NativeGas, safetyDeposit)

	srcCancelAt := deployedSrcIm.Timelocks.At(timelock.SrcCancellation)
	dstEscrow, err := f.CreateDstEscrow(ctx, orderCreatedAt, dstIm, demoTaker, srcCancelAt)
	if err != nil {
		return fmt.Errorf("demo: CreateDstEscrow: %w", err)
	}
	deployedDstTimelocks, err := tl.Deploy(orderCreatedAt)
	if err != nil {
		return fmt.Errorf("demo: deploy dst timelocks: %w", err)
	}
	deployedDstIm := dstIm
	deployedDstIm.Timelocks = deployedDstTimelocks

	for _, rec := range []struct {
		addr   common.Address
		hash   common.Hash
		lock   uint64
		dep    uint64
		status uint8
	}{
		{srcEscrow.Address, srcEscrow.ImmutablesHash, srcEscrow.LockedTokens, srcEscrow.SafetyDepositBalance, uint8(srcEscrow.Status)},
		{dstEscrow.Address, dstEscrow.ImmutablesHash, dstEscrow.LockedTokens, dstEscrow.SafetyDepositBalance, uint8(dstEscrow.Status)},
	} {
		if err := escrowStore.SaveEscrow(ctx, store.EscrowRecord{
			Address:              rec.addr,
			ImmutablesHash:       rec.hash,
			Status:               rec.status,
			LockedTokens:         rec.lock,
			SafetyDepositBalance: rec.dep,
			DeployedAt:           orderCreatedAt,
			UpdatedAt:            time.Now(),
		}); err != nil {
			return fmt.Errorf("demo: SaveEscrow %s: %w", rec.addr, err)
		}
	}

	dstWithdrawAt := deployedDstIm.Timelocks.At(timelock.DstWithdrawal)
	if err := dstEscrow.WithdrawDstPrivate(ctx, dstWithdrawAt, deployedDstIm, demoTaker, secret); err != nil {
		return fmt.Errorf("demo: WithdrawDstPrivate: %w", err)
	}
	log.Printf("demo: dst escrow withdrawn, secret now observable on the destination chain")

	srcWithdrawAt := deployedSrcIm.Timelocks.At(timelock.SrcWithdrawal)
	if err := srcEscrow.WithdrawSrcPrivate(ctx, srcWithdrawAt, deployedSrcIm, demoTaker, secret); err != nil {
		return fmt.Errorf("demo: WithdrawSrcPrivate: %w", err)
	}
	log.Printf("demo: src escrow withdrawn, swap settled on both chains")

	for _, pre := range []store.EscrowRecord{
		{Address: srcEscrow.Address, ImmutablesHash: srcEscrow.ImmutablesHash, Status: uint8(srcEscrow.Status), DeployedAt: orderCreatedAt},
		{Address: dstEscrow.Address, ImmutablesHash: dstEscrow.ImmutablesHash, Status: uint8(dstEscrow.Status), DeployedAt: orderCreatedAt},
	} {
		if _, err := escrowStore.GetEscrow(ctx, pre.Address); err != nil {
			return fmt.Errorf("demo: GetEscrow %s: %w", pre.Address, err)
		}
		pre.UpdatedAt = time.Now()
		if err := escrowStore.SaveEscrow(ctx, pre); err != nil {
			return fmt.Errorf("demo: SaveEscrow (post-withdraw) %s: %w", pre.Address, err)
		}
	}

	takerSrcBal, _ := ledger.BalanceOf(ctx, demoTaker, demoSrcToken)
	makerDstBal, _ := ledger.BalanceOf(ctx, demoMaker, demoDstToken)
	log.Printf("demo: final balances taker_src=%d maker_dst=%d", takerSrcBal, makerDstBal)
	return nil
}

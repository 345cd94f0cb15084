// Zchain full node daemon: opens FinalizedStore, joins the peer
// network, and runs the tip-following syncer until told to stop.
//
// Usage:
//
//	zchaind [--network=testnet]
//	zchaind --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/finalizedstate"
	zgenesis "github.com/Klingon-tech/klingnet-chain/internal/genesis"
	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/netadapter"
	"github.com/Klingon-tech/klingnet-chain/internal/p2p"
	"github.com/Klingon-tech/klingnet-chain/internal/stateservice"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	syncer "github.com/Klingon-tech/klingnet-chain/internal/sync"
	"github.com/Klingon-tech/klingnet-chain/internal/verify"
)

func main() {
	// ── 1. Load config (defaults → data dirs → file → flags) ────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = filepath.Join(cfg.LogsDir(), "zchain.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	// ── 3. Genesis (hardcoded per network, not loaded from file) ────────
	gen := config.GenesisFor(cfg.Network)
	genesisBlock, err := zgenesis.Block(gen)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build genesis block")
	}
	genesisHash := genesisBlock.Hash()

	logger.Info().
		Str("chain_id", gen.ChainID).
		Str("network", string(cfg.Network)).
		Str("genesis_hash", genesisHash.String()).
		Msg("Starting Zchain Node")

	// ── 4. Open storage ──────────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.FinalizedStateDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.FinalizedStateDir()).Msg("Failed to open database")
	}
	defer db.Close()

	store, err := finalizedstate.Open(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open finalized state")
	}
	logger.Info().Str("path", cfg.FinalizedStateDir()).Msg("Finalized state opened")

	svc := stateservice.New(store)

	// A fresh database has never seen genesis. Commit it locally instead
	// of waiting on the peer network, since every node already agrees on
	// it by construction.
	if store.IsEmpty() {
		if _, err := svc.CommitBlock(context.Background(), genesisBlock); err != nil {
			logger.Fatal().Err(err).Msg("Failed to commit genesis block")
		}
	}

	// ── 5. Block verification ────────────────────────────────────────────
	// No consensus engine is wired in yet, so Verify performs structural
	// checks only; a HeaderChecker can be plugged in later without
	// touching the Syncer or stateservice.
	verifier := verify.New(svc, nil)

	// ── 6. Create P2P node ────────────────────────────────────────────
	p2pNode := p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		MaxPeers:   cfg.P2P.MaxPeers,
		NoDiscover: cfg.P2P.NoDiscover,
		DB:         db,
		DHTServer:  cfg.P2P.DHTServer,
		NetworkID:  gen.ChainID,
		DataDir:    cfg.ChainDataDir(),
	})
	p2pNode.SetGenesisHash(genesisHash)
	p2pNode.SetHeightFn(func() uint64 {
		height, _, ok := store.Tip()
		if !ok {
			return 0
		}
		return uint64(height)
	})

	if err := p2pNode.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start P2P node")
	}
	defer p2pNode.Stop()

	// ── 7. Wire the sync protocol over the P2P host ──────────────────────
	adapter := netadapter.New(p2pNode.Host(), cfg.Sync.BlockDownloadRetries, cfg.Sync.BlockTimeout)
	adapter.RegisterFindBlocksHandler(svc.LocateBlocks)
	adapter.RegisterBlocksByHashHandler(svc.BlockByHash)

	// ── 8. Run the tip-following syncer ─────────────────────────────────
	sy := syncer.New(adapter, adapter, svc, verifier, syncer.Config{
		Fanout:               cfg.Sync.Fanout,
		LookaheadLimit:       cfg.Sync.LookaheadLimit,
		BlockTimeout:         cfg.Sync.BlockTimeout,
		SyncRestartTimeout:   cfg.Sync.SyncRestartTimeout,
		BlockDownloadRetries: cfg.Sync.BlockDownloadRetries,
		GenesisHash:          genesisHash,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sy.Sync(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Syncer stopped unexpectedly")
		}
	}()

	height, tip, _ := store.Tip()
	logger.Info().
		Uint64("height", uint64(height)).
		Str("tip", tip.String()).
		Msg("Node started successfully")

	// ── 9. Wait for shutdown ─────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	// Graceful shutdown: cancel the syncer, stop P2P, close the database
	// (via defers).
	cancel()
	logger.Info().Msg("Goodbye!")
}

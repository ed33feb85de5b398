package indexer

import (
	"log/slog"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/aggregates"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/orderbook"
	"orderbook-lab/internal/storage"
)

// Stores are the durable backing of the engine.
type Stores struct {
	OrderBooks storage.OrderBookStore
	Snapshots  storage.SnapshotStore
}

// Peers is the chain-wide state the engine reads and cascades into. It
// outlives a single Processor.
type Peers struct {
	Assets       *aggregates.AssetRegistry
	Network      *aggregates.NetworkStats
	TechAccounts *accounts.MemorySource
}

// NewPeers returns empty peers.
func NewPeers() Peers {
	return Peers{
		Assets:       aggregates.NewAssetRegistry(),
		Network:      aggregates.NewNetworkStats(),
		TechAccounts: accounts.NewMemorySource(),
	}
}

// Settings are the engine tunables.
type Settings struct {
	Resolutions     []domain.Resolution
	FlushThreshold  int64
	SS58Prefix      uint16
	DailyStatsEvery int64
	Logger          *slog.Logger
}

// Build wires a resolver, an engine and a processor with fresh caches.
func Build(stores Stores, peers Peers, s Settings) (*Processor, *orderbook.Engine) {
	resolver := accounts.NewResolver(peers.TechAccounts, accounts.Options{
		SS58Prefix: s.SS58Prefix,
		Logger:     s.Logger,
	})
	engine := orderbook.NewEngine(stores.OrderBooks, stores.Snapshots, resolver, peers.Assets, peers.Network, orderbook.Options{
		Resolutions:    s.Resolutions,
		FlushThreshold: s.FlushThreshold,
		Logger:         s.Logger,
	})
	proc := NewProcessor(engine, peers.Assets, peers.Network, peers.TechAccounts, Options{
		DailyStatsEvery: s.DailyStatsEvery,
		Logger:          s.Logger,
	})
	return proc, engine
}

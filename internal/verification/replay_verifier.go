package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"orderbook-lab/internal/indexer"
	"orderbook-lab/internal/replay"
	"orderbook-lab/internal/storage"
	"orderbook-lab/internal/storage/memory"
)

// ErrInvalidRestartPoint is returned when the restart height is outside the block range.
var ErrInvalidRestartPoint = errors.New("restart point outside block range")

// StoreFactory returns a fresh, empty pair of stores.
type StoreFactory func(ctx context.Context) (indexer.Stores, error)

// MemoryStores is a StoreFactory over in-memory stores.
func MemoryStores(context.Context) (indexer.Stores, error) {
	return indexer.Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}, nil
}

// DeterminismOptions configures CheckDeterminism.
type DeterminismOptions struct {
	RestartAfter int64 // last block of the first half
	SyncEvery    int64
	Settings     indexer.Settings
}

// DeterminismReport compares an uninterrupted run with a restarted one.
type DeterminismReport struct {
	RestartAfter int64
	Blocks       int
	OrderBooks   int
	Snapshots    int
	Divergences  []EntityDivergence
}

// Match reports whether both runs produced identical state.
func (r *DeterminismReport) Match() bool { return len(r.Divergences) == 0 }

// CheckDeterminism processes blocks once without interruption, and once
// stopping after RestartAfter and resuming with fresh engine caches over the
// same stores. The persisted order books and snapshots of both runs are
// compared.
//
// The resumed half also starts with empty peers, as a new process would, so
// asset prices and technical accounts must be restored from the skipped
// blocks.
func CheckDeterminism(ctx context.Context, blocks []*replay.Block, newStores StoreFactory, opts DeterminismOptions) (*DeterminismReport, error) {
	if err := replay.ValidateOrder(blocks); err != nil {
		return nil, err
	}
	if len(blocks) == 0 || opts.RestartAfter < blocks[0].Height || opts.RestartAfter >= blocks[len(blocks)-1].Height {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRestartPoint, opts.RestartAfter)
	}
	if opts.Settings.Logger == nil {
		opts.Settings.Logger = slog.Default()
	}
	logger := opts.Settings.Logger.With("component", "determinism")

	// Uninterrupted run.
	straight, err := newStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("straight stores: %w", err)
	}
	if err := runBlocks(ctx, blocks, straight, indexer.NewPeers(), memory.NewProgressStore(), opts); err != nil {
		return nil, fmt.Errorf("straight run: %w", err)
	}

	// Restarted run: same stores and progress, fresh engine and peers.
	restarted, err := newStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("restarted stores: %w", err)
	}
	progress := memory.NewProgressStore()

	var firstHalf []*replay.Block
	for _, b := range blocks {
		if b.Height <= opts.RestartAfter {
			firstHalf = append(firstHalf, b)
		}
	}
	if err := runBlocks(ctx, firstHalf, restarted, indexer.NewPeers(), progress, opts); err != nil {
		return nil, fmt.Errorf("first half: %w", err)
	}
	logger.Info("restarting", "after_block", opts.RestartAfter)
	if err := runBlocks(ctx, blocks, restarted, indexer.NewPeers(), progress, opts); err != nil {
		return nil, fmt.Errorf("second half: %w", err)
	}

	return compareStores(ctx, straight, restarted, len(blocks), opts.RestartAfter)
}

func runBlocks(ctx context.Context, blocks []*replay.Block, stores indexer.Stores, peers indexer.Peers, progress storage.ProgressStore, opts DeterminismOptions) error {
	proc, _ := indexer.Build(stores, peers, opts.Settings)
	runner := replay.NewRunner(progress, opts.SyncEvery, opts.Settings.Logger)
	_, err := runner.Run(ctx, replay.NewSliceSource(blocks), proc)
	return err
}

func compareStores(ctx context.Context, expected, actual indexer.Stores, blocks int, restartAfter int64) (*DeterminismReport, error) {
	expBooks, err := expected.OrderBooks.All(ctx)
	if err != nil {
		return nil, err
	}
	actBooks, err := actual.OrderBooks.All(ctx)
	if err != nil {
		return nil, err
	}
	expSnaps, err := expected.Snapshots.All(ctx)
	if err != nil {
		return nil, err
	}
	actSnaps, err := actual.Snapshots.All(ctx)
	if err != nil {
		return nil, err
	}

	report := &DeterminismReport{
		RestartAfter: restartAfter,
		Blocks:       blocks,
		OrderBooks:   len(expBooks),
		Snapshots:    len(expSnaps),
	}
	report.Divergences = append(report.Divergences, CompareOrderBooks(expBooks, actBooks)...)
	report.Divergences = append(report.Divergences, CompareSnapshots(expSnaps, actSnaps)...)
	return report, nil
}

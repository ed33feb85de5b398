package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// BlockSource yields blocks in ascending height order, then io.EOF.
type BlockSource interface {
	Next() (*Block, error)
}

// SliceSource serves blocks from memory.
type SliceSource struct {
	blocks []*Block
	pos    int
}

// NewSliceSource creates a source over blocks.
func NewSliceSource(blocks []*Block) *SliceSource {
	return &SliceSource{blocks: blocks}
}

// Next returns the next block or io.EOF.
func (s *SliceSource) Next() (*Block, error) {
	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}

// Runner feeds blocks to a BlockEngine and records confirmed progress.
type Runner struct {
	progress  storage.ProgressStore
	syncEvery int64
	logger    *slog.Logger
}

// NewRunner creates a runner that asks the engine to sync at every height
// divisible by syncEvery. progress may be nil.
func NewRunner(progress storage.ProgressStore, syncEvery int64, logger *slog.Logger) *Runner {
	if syncEvery <= 0 {
		syncEvery = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		progress:  progress,
		syncEvery: syncEvery,
		logger:    logger.With("component", "runner"),
	}
}

// Result summarizes a run.
type Result struct {
	Blocks    int               // blocks applied
	Events    int               // events applied
	Skipped   int               // blocks at or below the resume point
	Restored  int               // events of skipped blocks passed to StateRestorer
	Confirmed *storage.Progress // last synced block, nil if none
}

// Run replays src through engine. Blocks at or below the stored progress are
// skipped, so a restarted run resumes after the last confirmed block. Events of
// skipped blocks still reach engine's Restore when it is a StateRestorer.
func (r *Runner) Run(ctx context.Context, src BlockSource, engine BlockEngine) (*Result, error) {
	res := &Result{}

	resumeAfter := int64(-1)
	if r.progress != nil {
		p, err := r.progress.GetLastProcessed(ctx)
		switch {
		case err == nil:
			resumeAfter = p.Height
			res.Confirmed = p
			r.logger.Info("resuming", "after_block", p.Height)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load progress: %w", err)
		}
	}

	pending := int64(0)
	var last *storage.Progress
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		block, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if block.Height <= resumeAfter {
			res.Skipped++
			if restorer, ok := engine.(StateRestorer); ok {
				bc := block.Context()
				for _, ev := range block.Events {
					if err := restorer.Restore(ctx, bc, ev); err != nil {
						return res, fmt.Errorf("restore block %d event %d (%s): %w", block.Height, ev.Index, ev.Type, err)
					}
					res.Restored++
				}
			}
			continue
		}

		bc := block.Context()
		for _, ev := range block.Events {
			if err := engine.OnEvent(ctx, bc, ev); err != nil {
				observability.RecordEventError(string(ev.Type))
				return res, fmt.Errorf("block %d event %d (%s): %w", block.Height, ev.Index, ev.Type, err)
			}
			res.Events++
		}

		// Sync points depend on height only, so a resumed run syncs where a
		// straight run would.
		pending++
		sync := block.Height%r.syncEvery == 0
		if err := engine.EndBlock(ctx, bc, sync); err != nil {
			return res, fmt.Errorf("end block %d: %w", block.Height, err)
		}
		res.Blocks++
		last = &storage.Progress{Height: block.Height, Timestamp: block.Timestamp}
		observability.RecordBlock(block.Height)

		if sync {
			pending = 0
			if err := r.confirm(ctx, res, last); err != nil {
				return res, err
			}
		}
	}

	if err := engine.Flush(ctx); err != nil {
		return res, fmt.Errorf("flush: %w", err)
	}
	if pending > 0 {
		if err := r.confirm(ctx, res, last); err != nil {
			return res, err
		}
	}
	r.logger.Info("replay finished", "blocks", res.Blocks, "events", res.Events, "skipped", res.Skipped, "restored", res.Restored)
	return res, nil
}

func (r *Runner) confirm(ctx context.Context, res *Result, p *storage.Progress) error {
	res.Confirmed = p
	if r.progress == nil {
		return nil
	}
	if err := r.progress.SetLastProcessed(ctx, p); err != nil {
		return fmt.Errorf("save progress at block %d: %w", p.Height, err)
	}
	return nil
}

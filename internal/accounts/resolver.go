package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/ss58"
)

// DefaultSS58Prefix is the address format of the indexed chain.
const DefaultSS58Prefix uint16 = 69

// ErrInvalidAccount is returned for account ids that are neither SS58 nor hex.
var ErrInvalidAccount = errors.New("invalid account id")

// Options configures a Resolver.
type Options struct {
	SS58Prefix uint16 // DefaultSS58Prefix if zero
	Logger     *slog.Logger
}

// Resolver maps liquidity keeper accounts to order books and back.
//
// The mapping is rebuilt from the TechAccountSource on a lookup miss, at most
// once per block: a second miss in a block that already rebuilt is answered
// from the current mapping. Not safe for concurrent use.
type Resolver struct {
	source TechAccountSource
	prefix uint16
	logger *slog.Logger

	byAccount map[string]domain.OrderBookKey
	byBook    map[domain.OrderBookKey]string
	rebuiltAt int64 // block height of the last rebuild, -1 if none
}

// NewResolver creates an empty resolver over source.
func NewResolver(source TechAccountSource, opts Options) *Resolver {
	if opts.SS58Prefix == 0 {
		opts.SS58Prefix = DefaultSS58Prefix
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Resolver{
		source: source,
		prefix: opts.SS58Prefix,
		logger: opts.Logger.With("component", "account_resolver"),
	}
	r.Reset()
	return r
}

// Rebuild replaces the mapping with a full scan of the source.
// The previous mapping is kept if the scan fails.
func (r *Resolver) Rebuild(ctx context.Context, block domain.Block) error {
	r.rebuiltAt = block.Height

	entries, err := r.source.TechAccounts(ctx, block)
	if err != nil {
		return fmt.Errorf("list tech accounts at block %d: %w", block.Height, err)
	}

	byAccount := make(map[string]domain.OrderBookKey)
	byBook := make(map[domain.OrderBookKey]string)
	for _, e := range entries {
		key, ok, err := OrderBookKeyOf(e.ID)
		if err != nil {
			return fmt.Errorf("tech account %s: %w", e.AccountID, err)
		}
		if !ok {
			continue
		}
		account, err := r.normalize(e.AccountID)
		if err != nil {
			return err
		}
		byAccount[account] = key
		byBook[key] = account
	}

	r.byAccount = byAccount
	r.byBook = byBook
	observability.RecordResolverRebuild()
	r.logger.Debug("tech accounts rebuilt", "block", block.Height, "order_books", len(byBook))
	return nil
}

// OrderBookOf returns the order book whose reserves account is account.
func (r *Resolver) OrderBookOf(ctx context.Context, block domain.Block, account string) (domain.OrderBookKey, bool, error) {
	account, err := r.normalize(account)
	if err != nil {
		return domain.OrderBookKey{}, false, err
	}

	if key, ok := r.byAccount[account]; ok {
		return key, true, nil
	}
	if err := r.rebuildOnMiss(ctx, block); err != nil {
		return domain.OrderBookKey{}, false, err
	}
	key, ok := r.byAccount[account]
	return key, ok, nil
}

// AccountOf returns the reserves account of an order book.
func (r *Resolver) AccountOf(ctx context.Context, block domain.Block, key domain.OrderBookKey) (string, bool, error) {
	if account, ok := r.byBook[key]; ok {
		return account, true, nil
	}
	if err := r.rebuildOnMiss(ctx, block); err != nil {
		return "", false, err
	}
	account, ok := r.byBook[key]
	return account, ok, nil
}

// Len returns the number of mapped order books.
func (r *Resolver) Len() int { return len(r.byBook) }

// Reset drops the mapping and the rebuild history.
func (r *Resolver) Reset() {
	r.byAccount = make(map[string]domain.OrderBookKey)
	r.byBook = make(map[domain.OrderBookKey]string)
	r.rebuiltAt = -1
}

func (r *Resolver) rebuildOnMiss(ctx context.Context, block domain.Block) error {
	if r.rebuiltAt == block.Height {
		return nil
	}
	return r.Rebuild(ctx, block)
}

func (r *Resolver) normalize(account string) (string, error) {
	out, err := ss58.Normalize(account, r.prefix)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidAccount, account, err)
	}
	return out, nil
}

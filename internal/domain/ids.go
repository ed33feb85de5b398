package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when a composite id cannot be parsed or rendered.
var ErrInvalidID = errors.New("invalid id")

// Separators used by the persisted id formats.
const (
	idSeparator    = "-"
	orderSeparator = "_"
)

// OrderBookKey identifies a trading pair on a dex.
// Rendered as "{dexId}-{baseAssetId}-{quoteAssetId}" at the persistence boundary.
type OrderBookKey struct {
	DexID        int
	BaseAssetID  string
	QuoteAssetID string
}

// String renders the persisted order book id.
func (k OrderBookKey) String() string {
	return strconv.Itoa(k.DexID) + idSeparator + k.BaseAssetID + idSeparator + k.QuoteAssetID
}

// Validate rejects keys whose rendered form would not parse back to the same key.
func (k OrderBookKey) Validate() error {
	if k.DexID < 0 {
		return fmt.Errorf("%w: negative dex id %d", ErrInvalidID, k.DexID)
	}
	for _, asset := range []string{k.BaseAssetID, k.QuoteAssetID} {
		if asset == "" {
			return fmt.Errorf("%w: empty asset id", ErrInvalidID)
		}
		if strings.ContainsAny(asset, idSeparator+orderSeparator) {
			return fmt.Errorf("%w: asset id %q contains a separator", ErrInvalidID, asset)
		}
	}
	return nil
}

// ParseOrderBookID parses "{dexId}-{baseAssetId}-{quoteAssetId}".
func ParseOrderBookID(id string) (OrderBookKey, error) {
	parts := strings.Split(id, idSeparator)
	if len(parts) != 3 {
		return OrderBookKey{}, fmt.Errorf("%w: order book id %q", ErrInvalidID, id)
	}

	dexID, err := strconv.Atoi(parts[0])
	if err != nil {
		return OrderBookKey{}, fmt.Errorf("%w: order book id %q: dex id: %v", ErrInvalidID, id, err)
	}

	key := OrderBookKey{DexID: dexID, BaseAssetID: parts[1], QuoteAssetID: parts[2]}
	if err := key.Validate(); err != nil {
		return OrderBookKey{}, err
	}
	return key, nil
}

// SnapshotKey identifies one bucket of one order book at one resolution.
// Rendered as "{orderBookId}-{resolution}-{bucketIndex}".
type SnapshotKey struct {
	OrderBook  OrderBookKey
	Resolution Resolution
	Index      int64
}

// String renders the persisted snapshot id.
func (k SnapshotKey) String() string {
	return k.OrderBook.String() + idSeparator + string(k.Resolution) + idSeparator + strconv.FormatInt(k.Index, 10)
}

// ParseSnapshotID parses "{orderBookId}-{resolution}-{bucketIndex}".
func ParseSnapshotID(id string) (SnapshotKey, error) {
	parts := strings.Split(id, idSeparator)
	if len(parts) != 5 {
		return SnapshotKey{}, fmt.Errorf("%w: snapshot id %q", ErrInvalidID, id)
	}

	ob, err := ParseOrderBookID(strings.Join(parts[:3], idSeparator))
	if err != nil {
		return SnapshotKey{}, err
	}

	res, err := ParseResolution(parts[3])
	if err != nil {
		return SnapshotKey{}, fmt.Errorf("%w: snapshot id %q: %v", ErrInvalidID, id, err)
	}

	index, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || index < 0 {
		return SnapshotKey{}, fmt.Errorf("%w: snapshot id %q: bucket index", ErrInvalidID, id)
	}

	return SnapshotKey{OrderBook: ob, Resolution: res, Index: index}, nil
}

// DealOrderID renders "{orderBookId}_{orderId}".
func DealOrderID(key OrderBookKey, orderID int64) string {
	return key.String() + orderSeparator + strconv.FormatInt(orderID, 10)
}

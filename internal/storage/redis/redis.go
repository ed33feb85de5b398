// Package redis stores order book state as JSON documents in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// Client wraps a go-redis client with the key prefix shared by all stores.
type Client struct {
	*goredis.Client
	prefix string
}

// Options configures NewClient.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "oblab"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: rdb, prefix: opts.KeyPrefix}, nil
}

// key renders "{prefix}:{kind}:{id}".
func (c *Client) key(kind, id string) string {
	return c.prefix + ":" + kind + ":" + id
}

// indexKey is the sorted set holding every id of kind.
func (c *Client) indexKey(kind string) string {
	return c.prefix + ":" + kind + ":_ids"
}

// docStore is a JSON document collection with an id index.
type docStore[R any] struct {
	client *Client
	kind   string
}

func (s *docStore[R]) get(ctx context.Context, id string) (*R, error) {
	data, err := s.client.Get(ctx, s.client.key(s.kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s %s: %w", s.kind, id, err)
	}

	var rec R
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", s.kind, id, err)
	}
	return &rec, nil
}

// save writes all documents and index entries in one MULTI/EXEC.
func (s *docStore[R]) save(ctx context.Context, ids []string, recs []R) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("redis", "save_"+s.kind, time.Since(start).Seconds(), err)
	}()

	payloads := make([][]byte, len(recs))
	for i := range recs {
		if payloads[i], err = json.Marshal(recs[i]); err != nil {
			return fmt.Errorf("encode %s %s: %w", s.kind, ids[i], err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			pipe.Set(ctx, s.client.key(s.kind, id), payloads[i], 0)
			pipe.ZAdd(ctx, s.client.indexKey(s.kind), goredis.Z{Member: id})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s batch: %w", s.kind, err)
	}
	return nil
}

// all loads every document in id order.
func (s *docStore[R]) all(ctx context.Context) ([]R, error) {
	ids, err := s.client.ZRange(ctx, s.client.indexKey(s.kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", s.kind, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.client.key(s.kind, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s batch: %w", s.kind, err)
	}

	out := make([]R, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without document
		}
		var rec R
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", s.kind, ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

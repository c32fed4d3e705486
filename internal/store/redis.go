package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

const (
	redisKeyPrefix    = "researcher:agent:"
	redisWatchRetries = 5
)

// Redis stores each agent as one JSON document and applies mutations in
// WATCH/MULTI transactions.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// ConnRedis dials Redis and verifies the connection with PING.
func ConnRedis(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if pong != "PONG" {
		client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Create(ctx context.Context, name string, files []knowledge.Record) (Agent, error) {
	a := newAgent(name, files)
	data, err := json.Marshal(a)
	if err != nil {
		return Agent{}, fmt.Errorf("encode agent: %w", err)
	}
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+a.ID, data, 0).Result()
	if err != nil {
		return Agent{}, fmt.Errorf("store agent: %w", err)
	}
	if !ok {
		return Agent{}, fmt.Errorf("agent id collision: %s", a.ID)
	}
	return a, nil
}

func (r *Redis) Get(ctx context.Context, id string) (Agent, error) {
	if err := ValidateID(id); err != nil {
		return Agent{}, err
	}
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("load agent: %w", err)
	}
	return decodeAgent(raw)
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

func (r *Redis) AppendFiles(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return r.update(ctx, id, expectedRevision, func(a *Agent) {
		a.Files = append(a.Files, records...)
	})
}

func (r *Redis) AppendWebsites(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return r.update(ctx, id, expectedRevision, func(a *Agent) {
		a.Websites = append(a.Websites, records...)
	})
}

func (r *Redis) AppendMessage(ctx context.Context, id string, text string) error {
	return r.update(ctx, id, -1, func(a *Agent) {
		a.Messages = append(a.Messages, text)
	})
}

// update runs fn inside a WATCH transaction, retrying when the key changed
// underneath. Only a revision mismatch is a conflict; message appends
// (negative expectedRevision) leave the revision alone.
func (r *Redis) update(ctx context.Context, id string, expectedRevision int64, fn func(*Agent)) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	key := redisKeyPrefix + id
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load agent: %w", err)
		}
		a, err := decodeAgent(raw)
		if err != nil {
			return err
		}
		if expectedRevision >= 0 && a.Revision != expectedRevision {
			return ErrConflict
		}
		fn(&a)
		if expectedRevision >= 0 {
			a.Revision++
		}
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode agent: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConflict
}

func decodeAgent(raw []byte) (Agent, error) {
	var a Agent
	if err := json.Unmarshal(raw, &a); err != nil {
		return Agent{}, fmt.Errorf("decode agent: %w", err)
	}
	if a.Files == nil {
		a.Files = []knowledge.Record{}
	}
	if a.Websites == nil {
		a.Websites = []knowledge.Record{}
	}
	if a.Messages == nil {
		a.Messages = []string{}
	}
	return a, nil
}

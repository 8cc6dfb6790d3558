package events

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "foodmed:presence:"

// nodeKey holds the users online on one relay node.
func nodeKey(node string) string { return keyPrefix + "node:" + node }

// lastSeenKey maps user id to the unix millisecond of its last transition.
func lastSeenKey() string { return keyPrefix + "lastseen" }

// RedisPresence mirrors this node's online set into Redis so other services
// can look it up without talking to the relay.
type RedisPresence struct {
	rdb  *redis.Client
	node string
}

func NewRedisPresence(rdb *redis.Client, node string) *RedisPresence {
	return &RedisPresence{rdb: rdb, node: node}
}

func (r *RedisPresence) Name() string { return "redis-presence" }

// Reset clears the node's set. The in-memory online set starts empty, so
// anything left from a previous run is stale.
func (r *RedisPresence) Reset(ctx context.Context) error {
	if err := r.rdb.Del(ctx, nodeKey(r.node)).Err(); err != nil {
		return errors.Wrapf(err, "reset presence for node %s", r.node)
	}
	return nil
}

func (r *RedisPresence) Handle(ctx context.Context, ev Event) error {
	if ev.Kind != KindPresence {
		return nil
	}
	pipe := r.rdb.TxPipeline()
	if ev.Online {
		pipe.SAdd(ctx, nodeKey(r.node), ev.UserID)
	} else {
		pipe.SRem(ctx, nodeKey(r.node), ev.UserID)
	}
	pipe.HSet(ctx, lastSeenKey(), ev.UserID, strconv.FormatInt(ev.At.UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "mirror presence of %s", ev.UserID)
	}
	return nil
}

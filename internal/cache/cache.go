// Package cache holds the read-through account snapshot cache. The
// authoritative state lives in Postgres; this layer only shortens the read
// path for the snapshot endpoints. Every core mutation replaces the cached
// entry, and writes are guarded by the account version so a slow read-path
// repopulation can never overwrite a fresher snapshot.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FLG2005/todo-api/internal/progression"
)

const keyPrefix = "account:"

// putScript stores a snapshot only when nothing newer is cached. The
// version comparison runs inside redis, closing the window between a
// read path's DB load and its repopulating write.
var putScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, decoded = pcall(cjson.decode, cur)
	if ok and decoded.Version and tonumber(decoded.Version) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

type Snapshots struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis at addr. A nil *Snapshots is a valid no-op cache,
// so callers can skip redis entirely by passing the nil returned when addr
// is empty.
func New(ctx context.Context, addr, password string) (*Snapshots, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Snapshots{rdb: rdb, ttl: 10 * time.Minute}, nil
}

func (c *Snapshots) Get(ctx context.Context, accountID string) (progression.Account, bool) {
	if c == nil {
		return progression.Account{}, false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+accountID).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache get %s: %v", accountID, err)
		}
		return progression.Account{}, false
	}
	var acc progression.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		// Treat undecodable entries as a miss and drop them.
		c.Invalidate(ctx, accountID)
		return progression.Account{}, false
	}
	return acc, true
}

func (c *Snapshots) Put(ctx context.Context, acc progression.Account) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return
	}
	if err := putScript.Run(ctx, c.rdb, []string{keyPrefix + acc.ID}, raw, acc.Version, c.ttl.Milliseconds()).Err(); err != nil {
		log.Printf("cache put %s: %v", acc.ID, err)
	}
}

func (c *Snapshots) Invalidate(ctx context.Context, accountID string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+accountID).Err(); err != nil {
		log.Printf("cache invalidate %s: %v", accountID, err)
	}
}

func (c *Snapshots) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

package state

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// clearScript deletes the key only if it still holds the caller's raid id.
var clearScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisMarkerStore shares raid markers between engine instances.
type RedisMarkerStore struct {
	Client *redis.Client
	Prefix string
}

var _ RaidMarkerStore = (*RedisMarkerStore)(nil)

func NewRedisMarkerStore(redisURL, prefix string) (*RedisMarkerStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &RedisMarkerStore{
		Client: rdb,
		Prefix: prefix,
	}, nil
}

func (s *RedisMarkerStore) key(guildID string) string {
	return s.Prefix + "raid/" + guildID
}

func (s *RedisMarkerStore) TryStart(ctx context.Context, guildID, raidID string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, s.key(guildID), raidID, ttl).Result()
}

func (s *RedisMarkerStore) Get(ctx context.Context, guildID string) (string, bool, error) {
	val, err := s.Client.Get(ctx, s.key(guildID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisMarkerStore) Clear(ctx context.Context, guildID, raidID string) (bool, error) {
	n, err := clearScript.Run(ctx, s.Client, []string{s.key(guildID)}, raidID).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisMarkerStore) Close() error {
	return s.Client.Close()
}

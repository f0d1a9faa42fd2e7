package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"token-launch-gateway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// acquireScript takes the wallet if it is free or already held by the same
// session. ARGV: session id, reserved_at, ttl in ms (0 keeps no expiry).
var acquireScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'session_id')
if cur and cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'session_id', ARGV[1], 'reserved_at', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// releaseScript deletes the reservation only for its holder.
var releaseScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'session_id') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// ReservationStore implements ports.ReservationStore with one hash per
// wallet. Redis key expiry acts as the hard TTL.
type ReservationStore struct {
	client *goredis.Client
	prefix string
}

// NewReservationStore creates a new Redis-backed reservation store.
func NewReservationStore(client *goredis.Client) *ReservationStore {
	return &ReservationStore{
		client: client,
		prefix: "reservation:",
	}
}

// Acquire stores res unless another session holds the wallet.
func (s *ReservationStore) Acquire(ctx context.Context, res domain.WalletReservation, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, s.client, []string{s.prefix + res.Wallet},
		res.SessionID, res.ReservedAt.UTC().Format(time.RFC3339Nano), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis reservation acquire: %w", err)
	}
	return n == 1, nil
}

// Release deletes the reservation if sessionID holds it.
func (s *ReservationStore) Release(ctx context.Context, wallet, sessionID string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{s.prefix + wallet}, sessionID).Int()
	if err != nil {
		return false, fmt.Errorf("redis reservation release: %w", err)
	}
	return n == 1, nil
}

// Get returns the reservation for wallet, or nil if it is free.
func (s *ReservationStore) Get(ctx context.Context, wallet string) (*domain.WalletReservation, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+wallet).Result()
	if err != nil {
		return nil, fmt.Errorf("redis reservation get: %w", err)
	}
	return decodeReservation(wallet, fields)
}

// List scans every reservation, oldest first.
func (s *ReservationStore) List(ctx context.Context) ([]domain.WalletReservation, error) {
	out := make([]domain.WalletReservation, 0)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		wallet := strings.TrimPrefix(iter.Val(), s.prefix)
		res, err := s.Get(ctx, wallet)
		if err != nil {
			return nil, err
		}
		// expired between SCAN and HGETALL
		if res == nil {
			continue
		}
		out = append(out, *res)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis reservation scan: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
	return out, nil
}

func decodeReservation(wallet string, fields map[string]string) (*domain.WalletReservation, error) {
	sessionID, ok := fields["session_id"]
	if !ok {
		return nil, nil
	}
	reservedAt, err := time.Parse(time.RFC3339Nano, fields["reserved_at"])
	if err != nil {
		return nil, fmt.Errorf("parse reserved_at for %s: %w", wallet, err)
	}
	return &domain.WalletReservation{
		Wallet:     wallet,
		SessionID:  sessionID,
		ReservedAt: reservedAt,
	}, nil
}

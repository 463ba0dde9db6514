package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "refresh_token:"
	expiryIndexKey   = "refresh_tokens:expiry"
)

// Hash fields of a stored record.
const (
	fieldTokenID     = "token_id"
	fieldUserID      = "user_id"
	fieldExpiresAt   = "expires_at"
	fieldUsed        = "used"
	fieldInvalidated = "invalidated"
)

// UserLookup is the part of the user repository the Redis store needs to
// reject records for unknown users.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// markUsedScript returns -1 for a missing record, 0 when the used=false
// precondition fails and 1 on success.
var markUsedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[1] == "1" and redis.call("HGET", KEYS[1], "used") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "used", ARGV[1])
return 1
`)

// sweepScript deletes every record scored at or below ARGV[1] and returns
// how many it removed.
var sweepScript = redis.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, m in ipairs(members) do
  redis.call("DEL", ARGV[2] .. m)
end
if #members > 0 then
  redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return #members
`)

// RedisRepository keeps each record in a hash and indexes expiries in a
// sorted set scored by unix milliseconds. Records carry no Redis TTL so an
// expired secret is still reported as expired until the next sweep.
//
// The store needs a single Redis node: Create writes two keys in one MULTI
// and the sweep deletes keys derived from index members.
type RedisRepository struct {
	rdb    *redis.Client
	users  UserLookup
	prefix string
	now    func() time.Time
}

func NewRedisRepository(rdb *redis.Client, users UserLookup, opts ...Option) *RedisRepository {
	o := applyOptions(opts)
	return &RedisRepository{rdb: rdb, users: users, prefix: defaultKeyPrefix, now: o.now}
}

func (r *RedisRepository) key(value string) string {
	return r.prefix + value
}

// expiryScore rounds t up to the next millisecond so a sweep with a
// millisecond cutoff never removes a record before it expires.
func expiryScore(t time.Time) float64 {
	ms := t.UnixMilli()
	if t.After(time.UnixMilli(ms)) {
		ms++
	}
	return float64(ms)
}

func (r *RedisRepository) Create(ctx context.Context, tokenID, userID, value string, expiresAt time.Time) error {
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorInvalidUserID
		}
		return err
	}

	key := r.key(value)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldTokenID, tokenID,
			fieldUserID, userID,
			fieldExpiresAt, expiresAt.UTC().Format(time.RFC3339Nano),
			fieldUsed, "0",
			fieldInvalidated, "0",
		)
		pipe.ZAdd(ctx, expiryIndexKey, redis.Z{Score: expiryScore(expiresAt), Member: value})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) FetchByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	return &models.RefreshToken{
		Value:       value,
		TokenID:     fields[fieldTokenID],
		UserID:      fields[fieldUserID],
		ExpiresAt:   expiresAt,
		Used:        fields[fieldUsed] == "1",
		Invalidated: fields[fieldInvalidated] == "1",
	}, nil
}

func (r *RedisRepository) MarkUsed(ctx context.Context, value string, used bool) error {
	flag := "0"
	if used {
		flag = "1"
	}

	res, err := markUsedScript.Run(ctx, r.rdb, []string{r.key(value)}, flag).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch res {
	case -1:
		return common.ErrorNotFound
	case 0:
		return common.ErrAlreadyRedeemed
	default:
		return nil
	}
}

func (r *RedisRepository) DeleteAllExpired(ctx context.Context) error {
	cutoff := strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := sweepScript.Run(ctx, r.rdb, []string{expiryIndexKey}, cutoff, r.prefix).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	updateStatusNotFound int64 = 0
	updateStatusInactive int64 = 1
	updateStatusRevoked  int64 = 2
	updateStatusConflict int64 = 3
)

// Timestamps are stored as unix milliseconds. Every script takes the caller's
// clock as an argument so the expiry check and the write happen in one step.

const insertTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[4])
redis.call("HSET", KEYS[1],
  "id", id, "token", ARGV[1], "user_id", ARGV[2], "expires_at", ARGV[3],
  "created_at", ARGV[4], "created_by_ip", ARGV[5], "is_revoked", "0")
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
return id
`

const revokeIfActiveScript = `
local f = redis.call("HMGET", KEYS[1], "is_revoked", "expires_at")
if not f[2] then
  return 0
end
if f[1] == "1" or tonumber(f[2]) <= tonumber(ARGV[1]) then
  return 1
end
redis.call("HSET", KEYS[1], "is_revoked", "1", "revoked_at", ARGV[2],
  "revoked_by", ARGV[3], "revoked_by_ip", ARGV[4], "replaced_by_token", ARGV[5])
return 2
`

const rotateTokenScript = `
local f = redis.call("HMGET", KEYS[1], "is_revoked", "expires_at")
if not f[2] then
  return {0, 0}
end
if f[1] == "1" or tonumber(f[2]) <= tonumber(ARGV[1]) then
  return {1, 0}
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return {3, 0}
end
redis.call("HSET", KEYS[1], "is_revoked", "1", "revoked_at", ARGV[2],
  "revoked_by", ARGV[3], "revoked_by_ip", ARGV[4], "replaced_by_token", ARGV[5])
local id = redis.call("INCR", KEYS[5])
redis.call("HSET", KEYS[2],
  "id", id, "token", ARGV[5], "user_id", ARGV[6], "expires_at", ARGV[7],
  "created_at", ARGV[8], "created_by_ip", ARGV[9], "is_revoked", "0")
redis.call("SADD", KEYS[3], ARGV[5])
redis.call("ZADD", KEYS[4], ARGV[7], ARGV[5])
return {2, id}
`

const revokeAllScript = `
local revoked = 0
local members = redis.call("SMEMBERS", KEYS[1])
for _, tok in ipairs(members) do
  local key = ARGV[1] .. tok
  local f = redis.call("HMGET", key, "is_revoked", "expires_at")
  if not f[2] then
    redis.call("SREM", KEYS[1], tok)
  elseif f[1] ~= "1" and tonumber(f[2]) > tonumber(ARGV[2]) then
    redis.call("HSET", key, "is_revoked", "1", "revoked_at", ARGV[3],
      "revoked_by", ARGV[4], "revoked_by_ip", ARGV[5])
    revoked = revoked + 1
  end
end
return revoked
`

const deleteExpiredScript = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[3])
for _, tok in ipairs(expired) do
  local key = ARGV[1] .. tok
  local uid = redis.call("HGET", key, "user_id")
  if uid then
    redis.call("SREM", ARGV[2] .. uid, tok)
  end
  redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], tok)
end
return #expired
`

var (
	insertTokenLua    = redis.NewScript(insertTokenScript)
	revokeIfActiveLua = redis.NewScript(revokeIfActiveScript)
	rotateTokenLua    = redis.NewScript(rotateTokenScript)
	revokeAllLua      = redis.NewScript(revokeAllScript)
	deleteExpiredLua  = redis.NewScript(deleteExpiredScript)
)

// RedisTokenRepository is the Redis implementation of ITokenRepository.
// Each record is a hash under <prefix>:token:<value>; <prefix>:user:<id> indexes
// a user's tokens and <prefix>:expiry orders all tokens by expiry.
//
// The revoke-all and cleanup scripts derive token keys from set members, so
// they touch keys not declared in KEYS. That needs a single Redis node, which
// is why the repository takes a *redis.Client and not a cluster client.
type RedisTokenRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokenRepository(rdb *redis.Client, prefix string) *RedisTokenRepository {
	if prefix == "" {
		prefix = "rt"
	}
	return &RedisTokenRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisTokenRepository) tokenPrefix() string { return r.prefix + ":token:" }
func (r *RedisTokenRepository) userPrefix() string  { return r.prefix + ":user:" }
func (r *RedisTokenRepository) tokenKey(token string) string {
	return r.tokenPrefix() + token
}
func (r *RedisTokenRepository) userKey(userID string) string {
	return r.userPrefix() + userID
}
func (r *RedisTokenRepository) expiryKey() string { return r.prefix + ":expiry" }
func (r *RedisTokenRepository) seqKey() string    { return r.prefix + ":seq" }

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(field string) (time.Time, error) {
	ms, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func decodeTokenHash(h map[string]string) (*model.RefreshToken, error) {
	id, err := strconv.ParseInt(h["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	expiresAt, err := fromMillis(h["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	createdAt, err := fromMillis(h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	t := &model.RefreshToken{
		ID:          id,
		Token:       h["token"],
		UserID:      h["user_id"],
		ExpiresAt:   expiresAt,
		CreatedAt:   createdAt,
		CreatedByIP: h["created_by_ip"],
		IsRevoked:   h["is_revoked"] == "1",
	}
	if v := h["revoked_at"]; v != "" {
		at, err := fromMillis(v)
		if err != nil {
			return nil, fmt.Errorf("invalid revoked_at: %w", err)
		}
		t.RevokedAt = &at
	}
	if v, ok := h["revoked_by"]; ok {
		t.RevokedBy = &v
	}
	if v, ok := h["revoked_by_ip"]; ok {
		t.RevokedByIP = &v
	}
	if v := h["replaced_by_token"]; v != "" {
		t.ReplacedByToken = &v
	}
	return t, nil
}

func (r *RedisTokenRepository) Insert(ctx context.Context, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing script to create a new refresh token")

	id, err := insertTokenLua.Run(ctx, r.rdb,
		[]string{r.tokenKey(token.Token), r.userKey(token.UserID), r.expiryKey(), r.seqKey()},
		token.Token, token.UserID, millis(token.ExpiresAt), millis(token.CreatedAt), token.CreatedByIP,
	).Int64()
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token script")
		return storeError(err)
	}
	if id == 0 {
		return common.ErrTokenExists
	}
	token.ID = id
	return nil
}

func (r *RedisTokenRepository) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	h, err := r.rdb.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to read refresh token hash")
		return nil, storeError(err)
	}
	if len(h) == 0 {
		return nil, common.ErrTokenNotFound
	}
	t, err := decodeTokenHash(h)
	if err != nil {
		return nil, storeError(err)
	}
	return t, nil
}

// loadTokens fetches the hashes of the given token values in one pipeline.
// Values whose hash no longer exists are skipped.
func (r *RedisTokenRepository) loadTokens(ctx context.Context, values []string) ([]*model.RefreshToken, error) {
	if len(values) == 0 {
		return nil, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(values))
	for i, v := range values {
		cmds[i] = pipe.HGetAll(ctx, r.tokenKey(v))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeError(err)
	}

	tokens := make([]*model.RefreshToken, 0, len(values))
	for _, cmd := range cmds {
		h, err := cmd.Result()
		if err != nil {
			return nil, storeError(err)
		}
		if len(h) == 0 {
			continue
		}
		t, err := decodeTokenHash(h)
		if err != nil {
			return nil, storeError(err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (r *RedisTokenRepository) FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*model.RefreshToken, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Listing active refresh tokens for a user")

	values, err := r.rdb.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		log.WithError(err).Error("Failed to read user token index")
		return nil, storeError(err)
	}
	all, err := r.loadTokens(ctx, values)
	if err != nil {
		return nil, err
	}

	active := make([]*model.RefreshToken, 0, len(all))
	for _, t := range all {
		if t.IsActive(now) {
			active = append(active, t)
		}
	}
	sortByID(active)
	return active, nil
}

func (r *RedisTokenRepository) FindExpired(ctx context.Context, now time.Time) ([]*model.RefreshToken, error) {
	values, err := r.rdb.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(millis(now), 10),
	}).Result()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to read expiry index")
		return nil, storeError(err)
	}
	tokens, err := r.loadTokens(ctx, values)
	if err != nil {
		return nil, err
	}
	sortByID(tokens)
	return tokens, nil
}

func (r *RedisTokenRepository) UpdateIfActive(ctx context.Context, token string, now time.Time, rev model.Revocation) (bool, error) {
	log := logger.Log.WithField("revoked_by", rev.By)
	log.Info("Executing script to revoke a refresh token")

	status, err := revokeIfActiveLua.Run(ctx, r.rdb,
		[]string{r.tokenKey(token)},
		millis(now), millis(rev.At), rev.By, rev.ByIP, rev.ReplacedByToken,
	).Int64()
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh token script")
		return false, storeError(err)
	}
	return status == updateStatusRevoked, nil
}

func (r *RedisTokenRepository) Rotate(ctx context.Context, oldToken string, now time.Time, rev model.Revocation, next *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    next.UserID,
		"revoked_by": rev.By,
	})
	log.Info("Executing script to rotate a refresh token")

	result, err := rotateTokenLua.Run(ctx, r.rdb,
		[]string{r.tokenKey(oldToken), r.tokenKey(next.Token), r.userKey(next.UserID), r.expiryKey(), r.seqKey()},
		millis(now), millis(rev.At), rev.By, rev.ByIP,
		next.Token, next.UserID, millis(next.ExpiresAt), millis(next.CreatedAt), next.CreatedByIP,
	).Result()
	if err != nil {
		log.WithError(err).Error("Failed to execute rotate refresh token script")
		return storeError(err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) < 2 {
		return storeError(errors.New("invalid rotate script response"))
	}
	status, ok := parts[0].(int64)
	if !ok {
		return storeError(errors.New("invalid rotate script status"))
	}

	switch status {
	case updateStatusNotFound, updateStatusInactive:
		return common.ErrTokenInactive
	case updateStatusConflict:
		return common.ErrTokenExists
	case updateStatusRevoked:
		id, ok := parts[1].(int64)
		if !ok {
			return storeError(errors.New("invalid rotate script id"))
		}
		next.ID = id
		return nil
	default:
		return storeError(fmt.Errorf("unknown rotate script status %d", status))
	}
}

func (r *RedisTokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time, rev model.Revocation) (int64, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"revoked_by": rev.By,
	})
	log.Info("Executing script to revoke all refresh tokens for a user")

	n, err := revokeAllLua.Run(ctx, r.rdb,
		[]string{r.userKey(userID)},
		r.tokenPrefix(), millis(now), millis(rev.At), rev.By, rev.ByIP,
	).Int64()
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke all refresh tokens script")
		return 0, storeError(err)
	}
	return n, nil
}

func (r *RedisTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	logger.Log.WithField("cutoff", now).Info("Executing script to delete expired refresh tokens")

	n, err := deleteExpiredLua.Run(ctx, r.rdb,
		[]string{r.expiryKey()},
		r.tokenPrefix(), r.userPrefix(), millis(now),
	).Int64()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete expired refresh tokens script")
		return 0, storeError(err)
	}
	return n, nil
}

func sortByID(tokens []*model.RefreshToken) {
	slices.SortFunc(tokens, func(a, b *model.RefreshToken) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

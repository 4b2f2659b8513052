package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 登录会话：
//   app:sess:<id>          hash（uid / iat / ip / ua），TTL 到期即登出
//   app:user_sessions:<uid> 该用户所有会话 id，停用或删除用户时整体撤销
type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

var ErrNoSession = errors.New("app session not found or expired")

type AppSession struct {
	ID       string
	UserID   uint
	IssuedAt time.Time
	IP       string
	UA       string
}

func sessKey(id string) string   { return "app:sess:" + id }
func userSetKey(uid uint) string { return "app:user_sessions:" + strconv.FormatUint(uint64(uid), 10) }

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

func (s *AppSessionStore) Create(ctx context.Context, userID uint, ip, ua string) (*AppSession, error) {
	as := &AppSession{
		ID:       uuid.NewString(),
		UserID:   userID,
		IssuedAt: time.Now().UTC(),
		IP:       ip,
		UA:       ua,
	}
	k, set := sessKey(as.ID), userSetKey(userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k,
		"uid", strconv.FormatUint(uint64(userID), 10),
		"iat", strconv.FormatInt(as.IssuedAt.Unix(), 10),
		"ip", ip,
		"ua", ua,
	)
	pipe.Expire(ctx, k, s.ttl)
	pipe.SAdd(ctx, set, as.ID)
	pipe.Expire(ctx, set, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return as, nil
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	m, err := s.rdb.HGetAll(ctx, sessKey(id)).Result()
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(m["uid"], 10, 0)
	if len(m) == 0 || err != nil || uid == 0 {
		return nil, ErrNoSession
	}
	iat, _ := strconv.ParseInt(m["iat"], 10, 64)
	return &AppSession{
		ID:       id,
		UserID:   uint(uid),
		IssuedAt: time.Unix(iat, 0).UTC(),
		IP:       m["ip"],
		UA:       m["ua"],
	}, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	uid, err := s.rdb.HGet(ctx, sessKey(id), "uid").Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessKey(id))
	if uid != 0 {
		pipe.SRem(ctx, userSetKey(uint(uid)), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForUser 返回撤销的会话数
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID uint) (int, error) {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessKey(id))
	}
	pipe.Del(ctx, userSetKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

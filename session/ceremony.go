package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Ceremony 区分 WebAuthn 仪式数据的用途，决定 key 前缀
type Ceremony string

const (
	Enrol  Ceremony = "reg:inv" // 邀请登记，按 invite token
	AddKey Ceremony = "reg"     // 已登录用户追加 passkey，按 user handle
	Login  Ceremony = "auth"    // 登录，按一次性 sessionId
)

var ErrCeremonyExpired = errors.New("webauthn ceremony expired or unknown")

// Store 保存 Begin* 产生的 SessionData，Finish* 时取回
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func ceremonyKey(c Ceremony, id string) string { return "webauthn:" + string(c) + ":" + id }

func (s *Store) Save(ctx context.Context, c Ceremony, id string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, ceremonyKey(c, id), b, s.ttl).Err()
}

// Take 取出即删除（GETDEL），同一份 challenge 只能用一次
func (s *Store) Take(ctx context.Context, c Ceremony, id string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, ceremonyKey(c, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCeremonyExpired
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

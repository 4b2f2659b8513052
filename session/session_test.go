package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAppSessionRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	st := NewAppSessionStore(rdb, time.Hour)

	as, err := st.Create(ctx, 7, "10.0.0.1", "curl/8")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.Get(ctx, as.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 7 || got.IP != "10.0.0.1" || got.UA != "curl/8" {
		t.Fatalf("session = %+v", got)
	}

	if err := st.Delete(ctx, as.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, as.ID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("after delete err = %v, want ErrNoSession", err)
	}
	if mr.Exists(userSetKey(7)) {
		if ids, _ := mr.Members(userSetKey(7)); len(ids) != 0 {
			t.Fatalf("user index still holds %v", ids)
		}
	}

	// TTL 到期
	as, err = st.Create(ctx, 7, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := st.Get(ctx, as.ID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expired err = %v, want ErrNoSession", err)
	}
	if _, err := st.Get(ctx, "no-such-session"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("unknown err = %v, want ErrNoSession", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	st := NewAppSessionStore(rdb, time.Hour)

	var mine []string
	for i := 0; i < 3; i++ {
		as, err := st.Create(ctx, 1, "", "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		mine = append(mine, as.ID)
	}
	other, err := st.Create(ctx, 2, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := st.RevokeAllForUser(ctx, 1)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d sessions, want 3", n)
	}
	for _, id := range mine {
		if _, err := st.Get(ctx, id); !errors.Is(err, ErrNoSession) {
			t.Fatalf("session %s survived revoke: %v", id, err)
		}
	}
	if _, err := st.Get(ctx, other.ID); err != nil {
		t.Fatalf("other user's session revoked: %v", err)
	}
	if n, err := st.RevokeAllForUser(ctx, 1); err != nil || n != 0 {
		t.Fatalf("second revoke = %d, %v", n, err)
	}
}

func TestCeremonyTakeIsSingleUse(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	st := NewStore(rdb, time.Minute)

	sd := &webauthn.SessionData{Challenge: "c-1", UserID: []byte("u-1")}
	if err := st.Save(ctx, Login, "sid", sd); err != nil {
		t.Fatalf("save: %v", err)
	}
	// 不同仪式的 key 互不相通
	if _, err := st.Take(ctx, AddKey, "sid"); !errors.Is(err, ErrCeremonyExpired) {
		t.Fatalf("wrong ceremony err = %v", err)
	}
	got, err := st.Take(ctx, Login, "sid")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.Challenge != "c-1" || string(got.UserID) != "u-1" {
		t.Fatalf("session data = %+v", got)
	}
	if _, err := st.Take(ctx, Login, "sid"); !errors.Is(err, ErrCeremonyExpired) {
		t.Fatalf("second take err = %v, want ErrCeremonyExpired", err)
	}

	if err := st.Save(ctx, Enrol, "tok", sd); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := st.Take(ctx, Enrol, "tok"); !errors.Is(err, ErrCeremonyExpired) {
		t.Fatalf("expired take err = %v, want ErrCeremonyExpired", err)
	}
}

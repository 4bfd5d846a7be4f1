package cookievalkey_test

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valkey-io/valkey-go"

	"github.com/seaneb/seaneb-auth/internal/dbtest/valkeytest"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	cookievalkey "github.com/seaneb/seaneb-auth/pkg/cookiejar/valkey"
)

var client valkey.Client

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()

	instance := valkeytest.Start(ctx)
	client = instance.Client

	code := m.Run()
	instance.Stop(ctx)

	os.Exit(code)
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := t.Context()
	store := cookievalkey.New(client, "seaneb-auth-set-get-test:")

	store.Set(ctx, "access_token", "token", cookiejar.Options{MaxAge: time.Minute})

	got, ok := store.Get(ctx, "access_token")
	assert.True(t, ok)
	assert.Equal(t, "token", got)

	ttl, err := client.Do(ctx, client.B().Pttl().Key("seaneb-auth-set-get-test:cookie:access_token").Build()).AsInt64()
	assert.NoError(t, err)
	assert.Positive(t, ttl)
	assert.LessOrEqual(t, ttl, time.Minute.Milliseconds())

	store.Remove(ctx, "access_token")
	_, ok = store.Get(ctx, "access_token")
	assert.False(t, ok)
}

func TestStore_NonPositiveMaxAgeDeletes(t *testing.T) {
	ctx := t.Context()
	store := cookievalkey.New(client, "seaneb-auth-delete-test")

	store.Set(ctx, "dashboard_mode", "user", cookiejar.Options{MaxAge: time.Minute})
	store.Set(ctx, "dashboard_mode", "user", cookiejar.Options{})

	_, ok := store.Get(ctx, "dashboard_mode")
	assert.False(t, ok)
}

func TestStore_Names(t *testing.T) {
	ctx := t.Context()
	store := cookievalkey.New(client, "seaneb-auth-names-test")
	other := cookievalkey.New(client, "seaneb-auth-names-other")

	store.Set(ctx, "csrf_token", "c", cookiejar.Options{MaxAge: time.Minute})
	store.Set(ctx, cookiejar.HTTPOnlyName("refresh_token"), "r", cookiejar.Options{MaxAge: time.Minute})
	other.Set(ctx, "access_token", "a", cookiejar.Options{MaxAge: time.Minute})

	assert.Equal(t, []string{"csrf_token", "httponly:refresh_token"}, store.Names(ctx))
}

func TestStore_MissingKey(t *testing.T) {
	store := cookievalkey.New(client, "seaneb-auth-missing-test")

	_, ok := store.Get(t.Context(), "nothing-here")
	assert.False(t, ok)
}

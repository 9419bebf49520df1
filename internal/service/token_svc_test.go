package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/vendors/zoho"
)

func TestDBTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewDBTokenStore(repository.NewTokenRepository(setupSyncTestDB(t)))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, &zoho.Token{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}))
	require.NoError(t, store.Save(ctx, &zoho.Token{AccessToken: "a2", RefreshToken: "r1", ExpiresAt: expires}))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
	assert.True(t, got.ExpiresAt.Equal(expires))

	// 失效后不再返回，等待重新刷新
	require.NoError(t, store.MarkInvalid(ctx, "invalid_code"))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, &zoho.Token{AccessToken: "a3", RefreshToken: "r2", ExpiresAt: expires}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a3", got.AccessToken)
}

type fakeRefresher struct {
	within time.Duration
	err    error
}

func (f *fakeRefresher) EnsureToken(_ context.Context, within time.Duration) error {
	f.within = within
	return f.err
}

func TestTokenService_KeepAlive(t *testing.T) {
	r := &fakeRefresher{}
	svc := NewTokenService(r, 0)
	require.NoError(t, svc.KeepAlive(context.Background()))
	assert.Equal(t, 10*time.Minute, r.within)

	r.err = errors.New("boom")
	assert.ErrorContains(t, svc.KeepAlive(context.Background()), "boom")
}

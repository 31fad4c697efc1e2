package tenantctx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantIDUnset(t *testing.T) {
	id, ok := TenantID(context.Background())
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
}

func TestWithTenantRoundTrip(t *testing.T) {
	tenant := uuid.New()
	ctx := WithTenant(context.Background(), tenant)

	id, ok := TenantID(ctx)
	require.True(t, ok)
	assert.Equal(t, tenant, id)
}

func TestStripDropsTenant(t *testing.T) {
	ctx := WithTenant(context.Background(), uuid.New())
	ctx = Strip(ctx)

	_, ok := TenantID(ctx)
	assert.False(t, ok)
}

func TestAsRestoresPreviousScope(t *testing.T) {
	outer := uuid.New()
	inner := uuid.New()
	ctx := WithTenant(context.Background(), outer)

	err := As(ctx, inner, func(ctx context.Context) error {
		id, ok := TenantID(ctx)
		require.True(t, ok)
		assert.Equal(t, inner, id)
		return nil
	})
	require.NoError(t, err)

	// The caller's context is untouched.
	id, ok := TenantID(ctx)
	require.True(t, ok)
	assert.Equal(t, outer, id)
}

func TestAsPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	err := As(context.Background(), uuid.New(), func(context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

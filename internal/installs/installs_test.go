package installs_test

import (
	"context"
	"testing"
	"time"

	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseRegistry(t *testing.T, reg installs.Registry) {
	t.Helper()
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, reg.Add(ctx, "site-b", first.Add(time.Hour)))
	require.NoError(t, reg.Add(ctx, "site-a", first))
	// Reinstalling keeps the original install time.
	require.NoError(t, reg.Add(ctx, "site-a", first.Add(48*time.Hour)))

	list, err = reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "site-a", list[0].InstanceID)
	assert.Equal(t, first, list[0].InstalledAt)
	assert.Equal(t, "site-b", list[1].InstanceID)

	require.NoError(t, reg.Remove(ctx, "site-a"))
	require.NoError(t, reg.Remove(ctx, "never-installed"))

	list, err = reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "site-b", list[0].InstanceID)
}

func TestMemoryRegistry(t *testing.T) {
	exerciseRegistry(t, installs.NewMemoryRegistry())
}

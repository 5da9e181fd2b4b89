package filelock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquire_SecondCallIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrBusy)
}

func TestAcquire_ReleaseThenReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())

	l2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

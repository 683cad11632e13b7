package fsx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/memtx/internal/fsx"
)

func Test_Real_WriteFileAtomic_Then_ReadFile_Roundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	real := fsx.NewReal()
	require.NoError(t, real.WriteFileAtomic(path, []byte(`{"a":1}`), 0o600))

	data, err := real.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func Test_Real_WriteFileAtomic_Replaces_Existing_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	real := fsx.NewReal()
	require.NoError(t, real.WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, real.WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := real.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func Test_Real_MkdirAll_ReadDir_Stat_Remove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")

	real := fsx.NewReal()
	require.NoError(t, real.MkdirAll(sub, 0o755))

	path := filepath.Join(sub, "f.txt")
	require.NoError(t, real.WriteFileAtomic(path, []byte("x"), 0o600))

	entries, err := real.ReadDir(sub)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f.txt", entries[0].Name())

	info, err := real.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())

	require.NoError(t, real.Remove(path))

	_, err = real.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func Test_Locker_TryLock_Creates_File_And_Parent_Dirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "lock")

	locker := fsx.NewLocker(fsx.NewReal())
	lock, err := locker.TryLock(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, lock.Close())
}

func Test_Locker_TryLock_Second_Holder_Gets_ErrWouldBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lock")

	locker := fsx.NewLocker(fsx.NewReal())
	first, err := locker.TryLock(path)
	require.NoError(t, err)
	defer first.Close()

	_, err = locker.TryLock(path)
	assert.ErrorIs(t, err, fsx.ErrWouldBlock)
}

func Test_Locker_TryLock_Reacquirable_After_Close(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lock")

	locker := fsx.NewLocker(fsx.NewReal())

	first, err := locker.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := locker.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func Test_Lock_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lock")

	locker := fsx.NewLocker(fsx.NewReal())
	lock, err := locker.TryLock(path)
	require.NoError(t, err)

	require.NoError(t, lock.Close())
	require.NoError(t, lock.Close())
}

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetStorageRefDedupesIdenticalShapes(t *testing.T) {
	m := NewModule()
	u32 := Storages{{Tag: StUint, Size: 32}}

	ref1 := m.GetStorageRef(u32)
	ref2 := m.GetStorageRef(Storages{{Tag: StUint, Size: 32}})
	require.Equal(t, ref1, ref2, "identical shapes must share one ref")

	i32 := m.GetStorageRef(Storages{{Tag: StInt, Size: 32}})
	require.NotEqual(t, ref1, i32)

	got, ok := m.GetStorage(ref1)
	require.True(t, ok)
	require.Equal(t, u32, got)
}

func TestRebuildStorageTableReplacesWholesale(t *testing.T) {
	m := NewModule()
	oldRef := m.GetStorageRef(Storages{{Tag: StBool}})

	newRef := StorageRef(99)
	m.RebuildStorageTable([]StorageRef{newRef}, map[StorageRef]Storages{
		newRef: {{Tag: StBool}},
	})

	_, ok := m.GetStorage(oldRef)
	require.False(t, ok, "old ref must not survive a rebuild")

	got, ok := m.GetStorage(newRef)
	require.True(t, ok)
	require.Equal(t, Storages{{Tag: StBool}}, got)

	require.Equal(t, []StorageRef{newRef}, m.StorageRefs())
}

package registers

import (
	"testing"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/stretchr/testify/require"
)

func TestAliasConsistency(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Create(Info{Name: "x0", Size: 32}))
	require.NoError(t, s.Alias("x0_lo", "x0", 0, 16, false))

	v := memval.FromUint(0xDEADBEEF, 32, 8, memval.LittleEndian)
	require.NoError(t, s.Put("x0", v))

	got, err := s.Get("x0_lo")
	require.NoError(t, err)
	require.True(t, got.Equal(v.Subset(0, 16)))
}

func TestAliasNotificationSet(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Create(Info{Name: "x0", Size: 32}))
	require.NoError(t, s.Alias("x0_lo", "x0", 0, 16, false))
	require.NoError(t, s.Alias("x0_silent", "x0", 16, 32, true))

	var notified []string
	s.OnChange(func(name string) { notified = append(notified, name) })
	require.NoError(t, s.Put("x0", memval.New(32)))

	require.Contains(t, notified, "x0")
	require.Contains(t, notified, "x0_lo")
	require.NotContains(t, notified, "x0_silent")
}

func TestConstantRegisterIgnoresWrites(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Create(Info{Name: "zero", Size: 32, Constant: true}))
	require.NoError(t, s.Put("zero", memval.FromUint(42, 32, 8, memval.LittleEndian)))
	got, err := s.Get("zero")
	require.NoError(t, err)
	require.True(t, got.Equal(memval.New(32)))
}

func TestEqualConsidersTopLevelValues(t *testing.T) {
	a := NewSet()
	require.NoError(t, a.Create(Info{Name: "x1", Size: 32}))
	b := NewSet()
	require.NoError(t, b.Create(Info{Name: "x1", Size: 32}))
	require.True(t, a.Equal(b))

	require.NoError(t, a.Put("x1", memval.FromUint(1, 32, 8, memval.LittleEndian)))
	require.False(t, a.Equal(b))
}

func TestSnapshotJSON(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Create(Info{Name: "x1", Size: 8}))
	require.NoError(t, s.Put("x1", memval.FromUint(0xAB, 8, 8, memval.LittleEndian)))
	snap := s.SnapshotJSON()
	require.Equal(t, "AB", snap["register_x1"])
}

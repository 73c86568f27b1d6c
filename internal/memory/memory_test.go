package memory

import (
	"testing"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

func TestPutGetRoundTrip(t *testing.T) {
	m := New(64, 8)
	v := memval.FromUint(0x489, 32, 8, memval.LittleEndian)
	m.Put(0, v)
	got := m.Get(0, 4)
	if !got.Equal(v) {
		t.Errorf("expected %s, got %s", v.Hex(), got.Hex())
	}
}

func TestGetSliceConsistency(t *testing.T) {
	m := New(64, 8)
	v := memval.FromUint(0xAABBCCDD, 32, 8, memval.LittleEndian)
	m.Put(0, v)
	whole := m.Get(0, 4)
	for i := 0; i < 4; i++ {
		if !whole.Subset(i*8, (i+1)*8).Equal(m.Get(i, 1)) {
			t.Errorf("slice mismatch at byte %d", i)
		}
	}
}

func TestWriteClippedAtBoundary(t *testing.T) {
	m := New(4, 8)
	v := memval.FromUint(0xAABBCCDD, 32, 8, memval.LittleEndian)
	m.Put(2, v) // only 2 bytes fit
	if m.Get(2, 1).Hex() != "DD" || m.Get(3, 1).Hex() != "CC" {
		t.Errorf("expected clipped write, got %s %s", m.Get(2, 1).Hex(), m.Get(3, 1).Hex())
	}
}

func TestGetNegativeAddressReturnsZeroInsteadOfPanicking(t *testing.T) {
	m := New(64, 8)
	got := m.Get(-4, 4)
	if got.Hex() != "0" {
		t.Errorf("expected zero-filled read for a negative address, got %s", got.Hex())
	}
}

func TestChangeCallbackFiresOnce(t *testing.T) {
	m := New(16, 8)
	calls := 0
	m.OnChange(func(addr, amount int) {
		calls++
		if addr != 0 || amount != 4 {
			t.Errorf("unexpected callback args addr=%d amount=%d", addr, amount)
		}
	})
	m.Put(0, memval.FromUint(1, 32, 8, memval.LittleEndian))
	if calls != 1 {
		t.Errorf("expected 1 callback, got %d", calls)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := New(32, 8)
	m.Put(0, memval.FromUint(0x12345678, 32, 8, memval.LittleEndian))
	snap := m.SnapshotJSON(",", 16)

	m2 := New(32, 8)
	if err := m2.LoadSnapshotJSON(snap); err != nil {
		t.Fatalf("LoadSnapshotJSON: %v", err)
	}
	if !m2.Get(0, 4).Equal(m.Get(0, 4)) {
		t.Errorf("snapshot round trip mismatch: got %s want %s", m2.Get(0, 4).Hex(), m.Get(0, 4).Hex())
	}
}

func TestSnapshotArchMismatch(t *testing.T) {
	m := New(32, 8)
	snap := m.SnapshotJSON(",", 16)

	other := New(64, 8)
	err := other.LoadSnapshotJSON(snap)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if _, ok := err.(*ErrSnapshotArchMismatch); !ok {
		t.Errorf("expected *ErrSnapshotArchMismatch, got %T", err)
	}
}

func TestSnapshotOmitsZeroLines(t *testing.T) {
	m := New(64, 8)
	m.Put(0, memval.FromUint(1, 8, 8, memval.LittleEndian))
	snap := m.SnapshotJSON(",", 16)
	if _, ok := snap["memory_line16"]; ok {
		t.Error("expected zero line 16 to be omitted")
	}
	if _, ok := snap["memory_line0"]; !ok {
		t.Error("expected nonzero line 0 to be present")
	}
}

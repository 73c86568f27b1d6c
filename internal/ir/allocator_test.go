package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocBumpsWithinSection(t *testing.T) {
	a := NewMemoryAllocator(0, 0x10000, 0x20000, 4)
	first := a.Alloc(SectionText, 4)
	second := a.Alloc(SectionText, 4)
	require.EqualValues(t, 0, first)
	require.EqualValues(t, 4, second)
}

func TestAllocRespectsSectionBase(t *testing.T) {
	a := NewMemoryAllocator(0, 0x10000, 0x20000, 4)
	addr := a.Alloc(SectionData, 8)
	require.EqualValues(t, 0x10000, addr)
}

func TestAllocAligns(t *testing.T) {
	a := NewMemoryAllocator(0, 0, 0, 4)
	a.Alloc(SectionText, 1) // leaves cursor at 1, next alloc must realign to 4
	addr := a.Alloc(SectionText, 4)
	require.EqualValues(t, 4, addr)
}

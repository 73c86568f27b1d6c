// Package memory implements the linear, byte-addressable store shared by
// the simulation engine's instruction fetch and load/store paths.
package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// Memory is a linear store of ByteCount cells, each ByteSize bits wide.
// Writes outside the valid address range are clipped to the in-range
// prefix rather than rejected, mirroring the teacher's segment-bounds
// behavior generalized to a single flat address space.
type Memory struct {
	ByteCount int
	ByteSize  int

	data     memval.Value
	onChange func(address, amountBytes int)
}

// New creates a zero-filled Memory of byteCount cells, each byteSize bits.
func New(byteCount, byteSize int) *Memory {
	if byteCount <= 0 || byteSize <= 0 {
		panic("memory: byteCount and byteSize must be positive")
	}
	return &Memory{
		ByteCount: byteCount,
		ByteSize:  byteSize,
		data:      memval.New(byteCount * byteSize),
	}
}

// OnChange registers a callback invoked once per mutation with the
// starting byte address and the number of bytes touched.
func (m *Memory) OnChange(fn func(address, amountBytes int)) {
	m.onChange = fn
}

// Get returns a Value of amount*ByteSize bits starting at address. Reads
// that run past ByteCount are zero-padded.
func (m *Memory) Get(address, amount int) memval.Value {
	if amount <= 0 {
		return memval.New(m.ByteSize)
	}
	out := memval.New(amount * m.ByteSize)
	if address < 0 || address >= m.ByteCount {
		return out
	}
	inRange := m.ByteCount - address
	if inRange > amount {
		inRange = amount
	}
	src := m.data.Subset(address*m.ByteSize, (address+inRange)*m.ByteSize)
	_ = out.Write(src, 0)
	return out
}

// Put writes value into memory starting at address, clipping any part that
// would run past ByteCount. value's length must be a multiple of ByteSize.
func (m *Memory) Put(address int, value memval.Value) {
	if value.Len()%m.ByteSize != 0 {
		panic("memory: write length is not a multiple of ByteSize")
	}
	amount := value.Len() / m.ByteSize
	if address < 0 || amount == 0 {
		return
	}
	writable := m.ByteCount - address
	if writable <= 0 {
		return
	}
	if writable > amount {
		writable = amount
	}
	toWrite := value.Subset(0, writable*m.ByteSize)
	_ = m.data.Write(toWrite, address*m.ByteSize)
	if m.onChange != nil {
		m.onChange(address, writable)
	}
}

// Set writes value at address and returns the value previously stored
// there.
func (m *Memory) Set(address int, value memval.Value) memval.Value {
	amount := value.Len() / m.ByteSize
	prev := m.Get(address, amount)
	m.Put(address, value)
	return prev
}

// snapshotMeta is the fixed meta block of the sparse-line JSON format.
type snapshotMeta struct {
	ByteCount  int    `json:"memory_byteCount"`
	ByteSize   int    `json:"memory_byteSize"`
	LineLength int    `json:"memory_lineLength"`
	Separator  string `json:"memory_separator"`
}

// DefaultLineLength and DefaultSeparator match the teacher/original
// source's snapshot defaults.
const (
	DefaultLineLength = 16
	DefaultSeparator  = ","
)

// SnapshotJSON renders memory as the sparse-line JSON object described in
// spec §3.1/§6: meta fields plus one "memory_line<address>" entry per
// nonzero line, keyed by the address of the line's first byte.
func (m *Memory) SnapshotJSON(separator string, lineLength int) map[string]string {
	if lineLength <= 0 || lineLength > m.ByteCount {
		lineLength = m.ByteCount
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	out := map[string]string{
		"memory_byteCount":  strconv.Itoa(m.ByteCount),
		"memory_byteSize":   strconv.Itoa(m.ByteSize),
		"memory_lineLength": strconv.Itoa(lineLength),
		"memory_separator":  separator,
	}
	lineCount := (m.ByteCount + lineLength - 1) / lineLength
	empty := memval.New(lineLength * m.ByteSize)
	for i := 0; i < lineCount; i++ {
		line := m.Get(i*lineLength, lineLength)
		if line.Equal(empty) {
			continue
		}
		var parts []string
		for j := 0; j < lineLength; j++ {
			cell := m.Get(i*lineLength+j, 1)
			parts = append(parts, cell.Hex())
		}
		out[fmt.Sprintf("memory_line%d", i*lineLength)] = strings.Join(parts, separator)
	}
	return out
}

// ErrSnapshotArchMismatch is returned by LoadSnapshotJSON when a snapshot's
// meta fields do not match the target memory's configuration (Open
// Question (c), SPEC_FULL.md §6).
type ErrSnapshotArchMismatch struct {
	Field          string
	Expected, Have string
}

func (e *ErrSnapshotArchMismatch) Error() string {
	return fmt.Sprintf("memory: snapshot mismatch on %s: expected %s, have %s", e.Field, e.Expected, e.Have)
}

// LoadSnapshotJSON populates m from a sparse-line JSON object, validating
// that its byte count and byte size match m's configuration; the line
// length and separator are read from the snapshot itself.
func (m *Memory) LoadSnapshotJSON(data map[string]string) error {
	var meta snapshotMeta
	if v, ok := data["memory_byteCount"]; ok {
		meta.ByteCount, _ = strconv.Atoi(v)
	}
	if v, ok := data["memory_byteSize"]; ok {
		meta.ByteSize, _ = strconv.Atoi(v)
	}
	if v, ok := data["memory_lineLength"]; ok {
		meta.LineLength, _ = strconv.Atoi(v)
	}
	meta.Separator = data["memory_separator"]

	if meta.ByteCount != m.ByteCount {
		return &ErrSnapshotArchMismatch{"byteCount", strconv.Itoa(m.ByteCount), strconv.Itoa(meta.ByteCount)}
	}
	if meta.ByteSize != m.ByteSize {
		return &ErrSnapshotArchMismatch{"byteSize", strconv.Itoa(m.ByteSize), strconv.Itoa(meta.ByteSize)}
	}
	if meta.Separator == "" {
		meta.Separator = DefaultSeparator
	}

	var keys []string
	for k := range data {
		if strings.HasPrefix(k, "memory_line") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		addrStr := strings.TrimPrefix(k, "memory_line")
		addr, err := strconv.Atoi(addrStr)
		if err != nil {
			continue
		}
		value, err := deserializeLine(data[k], m.ByteSize, meta.LineLength, meta.Separator)
		if err != nil {
			return err
		}
		m.Put(addr, value)
	}
	return nil
}

// deserializeLine decodes one sparse-line hex-byte string into a Value,
// ignoring characters other than hex digits and the separator.
func deserializeLine(line string, byteSize, lineLength int, separator string) (memval.Value, error) {
	out := memval.New(byteSize * lineLength)
	cell := lineLength - 1
	bitInCell := 0
	runes := []rune(line)
	for i := len(runes) - 1; i >= 0; i-- {
		ch := runes[i]
		if string(ch) == separator {
			cell--
			bitInCell = 0
			continue
		}
		nibble, ok := hexNibble(ch)
		if !ok {
			continue // ignore unrepresentable characters
		}
		if cell < 0 {
			continue
		}
		base := cell*byteSize + bitInCell
		for b := 0; b < 4 && base+b < (cell+1)*byteSize; b++ {
			out.Put(base+b, nibble&(1<<uint(b)) != 0)
		}
		bitInCell += 4
	}
	return out, nil
}

func hexNibble(ch rune) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return byte(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return byte(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return byte(ch-'A') + 10, true
	default:
		return 0, false
	}
}

// Package project binds the engine's pieces — architecture, memory,
// registers, parser, execution engine — into the single process-wide
// object a host UI talks to (spec §6 "External interfaces"). Grounded on
// the teacher's service.DebuggerService, restructured from one struct
// behind a shared mutex onto internal/active servants behind typed
// proxies: Project owns the live memory/register state, Executor owns
// parse/run state, and Facade is the thing a host actually holds.
package project

import (
	"time"

	"github.com/lookbusy1344/riscv-sim/internal/active"
	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/memory"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/lookbusy1344/riscv-sim/internal/registers"
)

// Project is the servant owning the architecture description and the live
// memory/register state a running program executes against. It is never
// touched directly except by its own scheduler goroutine; every other
// servant reaches it through a Proxy[Project].
type Project struct {
	active.Servant

	Arch *arch.Architecture
	Mem  *memory.Memory
	Regs *registers.Set

	onMemoryChange   func(address, amount int)
	onRegisterChange func(name string)
}

// NewProject brews architecture and builds its memory/register stores.
func NewProject(a *arch.Architecture, byteCount int) (*Project, error) {
	regs, err := a.BuildRegisterSet()
	if err != nil {
		return nil, err
	}
	mem := memory.New(byteCount, a.ByteSize)
	p := &Project{Arch: a, Mem: mem, Regs: regs}
	mem.OnChange(func(address, amount int) {
		if p.onMemoryChange != nil {
			p.onMemoryChange(address, amount)
		}
	})
	regs.OnChange(func(name string) {
		if p.onRegisterChange != nil {
			p.onRegisterChange(name)
		}
	})
	return p, nil
}

// ast.MemoryAccess implementation. These methods assume they are called on
// Project's own scheduler goroutine (via Handle below); they take no lock
// of their own.

func (p *Project) GetRegister(name string) (memval.Value, error) { return p.Regs.Get(name) }

func (p *Project) PutRegister(name string, v memval.Value) error { return p.Regs.Put(name, v) }

func (p *Project) GetMemory(address, amount int) (memval.Value, error) {
	return p.Mem.Get(address, amount), nil
}

func (p *Project) PutMemory(address int, v memval.Value) error {
	p.Mem.Put(address, v)
	return nil
}

func (p *Project) MemoryByteCount() int { return p.Mem.ByteCount }

// Sleep blocks for ms milliseconds, waking early if cancel fires — the
// primitive simusleep is built on (spec §5 suspension point (c)). A nil
// cancel channel blocks forever on the receive side, so Sleep then simply
// waits out the timer.
func (p *Project) Sleep(ms int64, cancel <-chan struct{}) error {
	if ms <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
	}
	return nil
}

// Handle is a MemoryAccess view of Project that posts every call through
// its scheduler, so instruction execution running on another servant's
// goroutine still only ever touches Project state from Project's own
// worker (spec §5 "Shared-resource policy").
type Handle struct {
	proxy *active.Proxy[Project]
}

// NewHandle binds a handle to a project servant and the scheduler that
// owns it.
func NewHandle(p *Project, scheduler *active.Scheduler) *Handle {
	return &Handle{proxy: active.NewProxy(p, scheduler)}
}

func (h *Handle) GetRegister(name string) (memval.Value, error) {
	return active.PostFuture(h.proxy, func(p *Project) (memval.Value, error) { return p.GetRegister(name) })
}

func (h *Handle) PutRegister(name string, v memval.Value) error {
	_, err := active.PostFuture(h.proxy, func(p *Project) (struct{}, error) { return struct{}{}, p.PutRegister(name, v) })
	return err
}

func (h *Handle) GetMemory(address, amount int) (memval.Value, error) {
	return active.PostFuture(h.proxy, func(p *Project) (memval.Value, error) { return p.GetMemory(address, amount) })
}

func (h *Handle) PutMemory(address int, v memval.Value) error {
	_, err := active.PostFuture(h.proxy, func(p *Project) (struct{}, error) { return struct{}{}, p.PutMemory(address, v) })
	return err
}

func (h *Handle) MemoryByteCount() int {
	n, _ := active.PostFuture(h.proxy, func(p *Project) (int, error) { return p.MemoryByteCount(), nil })
	return n
}

func (h *Handle) Sleep(ms int64, cancel <-chan struct{}) error {
	_, err := active.PostFuture(h.proxy, func(p *Project) (struct{}, error) { return struct{}{}, p.Sleep(ms, cancel) })
	return err
}

// SetMemoryValueAt writes v at address and returns the value that was
// there before the write, for the set_*_value_at observer methods'
// "returns previous" contract.
func (h *Handle) SetMemoryValueAt(address, amount int, v memval.Value) (memval.Value, error) {
	return active.PostFuture(h.proxy, func(p *Project) (memval.Value, error) {
		prev := p.Mem.Get(address, amount)
		p.Mem.Put(address, v)
		return prev, nil
	})
}

func (h *Handle) SetRegisterValue(name string, v memval.Value) (memval.Value, error) {
	return active.PostFuture(h.proxy, func(p *Project) (memval.Value, error) {
		prev, err := p.Regs.Get(name)
		if err != nil {
			return memval.Value{}, err
		}
		return prev, p.Regs.Put(name, v)
	})
}

// OnMemoryChange and OnRegisterChange register the project's change
// callbacks. Must be called before any concurrent access begins, since
// Project itself takes no lock around these fields.
func (h *Handle) OnMemoryChange(fn func(address, amount int)) {
	h.proxy.Post(func(p *Project) { p.onMemoryChange = fn })
}

func (h *Handle) OnRegisterChange(fn func(name string)) {
	h.proxy.Post(func(p *Project) { p.onRegisterChange = fn })
}

// MemorySnapshotJSON renders memory as the sparse-line JSON object of spec
// §3.1/§6.
func (h *Handle) MemorySnapshotJSON(separator string, lineLength int) map[string]string {
	out, _ := active.PostFuture(h.proxy, func(p *Project) (map[string]string, error) {
		return p.Mem.SnapshotJSON(separator, lineLength), nil
	})
	return out
}

// RegisterSnapshotJSON renders registers as the name-to-hex-string map of
// spec §3.1/§6.
func (h *Handle) RegisterSnapshotJSON() map[string]string {
	out, _ := active.PostFuture(h.proxy, func(p *Project) (map[string]string, error) {
		return p.Regs.SnapshotJSON(), nil
	})
	return out
}

// LoadSnapshotJSON restores both memory (sparse-line format) and registers
// (one full-width hex write per "register_<name>" entry) from a previously
// saved snapshot.
func (h *Handle) LoadSnapshotJSON(memData, regData map[string]string) error {
	_, err := active.PostFuture(h.proxy, func(p *Project) (struct{}, error) {
		if err := p.Mem.LoadSnapshotJSON(memData); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, p.Regs.LoadSnapshotJSON(regData)
	})
	return err
}

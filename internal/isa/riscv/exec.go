package riscv

import (
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

func getSigned(mem ast.MemoryAccess, name string) (int64, error) {
	v, err := mem.GetRegister(name)
	if err != nil {
		return 0, err
	}
	return memval.ToInt(v, 8, memval.LittleEndian, memval.TwosComplement)
}

func getUnsigned(mem ast.MemoryAccess, name string) (uint64, error) {
	v, err := mem.GetRegister(name)
	if err != nil {
		return 0, err
	}
	return memval.ToUint(v, 8, memval.LittleEndian)
}

func putSigned(mem ast.MemoryAccess, name string, bits int, x int64) (memval.Value, error) {
	v := memval.FromInt(x, bits, 8, memval.LittleEndian, memval.TwosComplement)
	if name != "" {
		if err := mem.PutRegister(name, v); err != nil {
			return memval.Value{}, err
		}
	}
	return v, nil
}

func advancePC(mem ast.MemoryAccess, address uint64, xlen int) error {
	_, err := putSigned(mem, "pc", xlen, int64(address)+4)
	return err
}

func immSigned(in *Instruction) int64 {
	if in.Imm.Len() == 0 {
		return 0
	}
	x, _ := memval.ToInt(in.Imm, 8, memval.LittleEndian, memval.TwosComplement)
	return x
}

func rType(op func(a, b int64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getSigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, b))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

func rTypeUnsigned(op func(a, b uint64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getUnsigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getUnsigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, b))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

// rTypeUnsignedShift is rTypeUnsigned specialized for srl, same
// XLen-dependent mask as rTypeShift.
func rTypeUnsignedShift(op func(a, b uint64, mask uint64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getUnsigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getUnsigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, b, uint64(shiftMask(in.XLen))))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

func iType(op func(a, imm int64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, immSigned(in)))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

// shiftMask returns the bitmask a shift amount is reduced by for an
// in.XLen-bit register: 0x1F for 32-bit, 0x3F for 64-bit (RISC-V spec
// v2.2, SLL/SRL/SRA semantics).
func shiftMask(xlen int) int64 {
	if xlen >= 64 {
		return 0x3F
	}
	return 0x1F
}

// rTypeShift is rType specialized for sll/srl/sra, whose shift-amount mask
// depends on the executing instruction's XLen rather than being a fixed
// 32-bit constant.
func rTypeShift(op func(a, b, mask int64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getSigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, b, shiftMask(in.XLen)))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

// iTypeShift is iType specialized for slli/srli/srai, same XLen-dependent
// mask as rTypeShift.
func iTypeShift(op func(a, imm, mask int64) int64) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, op(a, immSigned(in), shiftMask(in.XLen)))
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

func loadType(bytes int, signed bool) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		base, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		addr := base + immSigned(in)
		raw, err := mem.GetMemory(int(addr), bytes)
		if err != nil {
			return memval.Value{}, err
		}
		sign := memval.TwosComplement
		var x int64
		if signed {
			x, err = memval.ToInt(raw, 8, memval.LittleEndian, sign)
		} else {
			var u uint64
			u, err = memval.ToUint(raw, 8, memval.LittleEndian)
			x = int64(u)
		}
		if err != nil {
			return memval.Value{}, err
		}
		v, err := putSigned(mem, in.Rd, in.XLen, x)
		if err != nil {
			return memval.Value{}, err
		}
		return v, advancePC(mem, in.Address, in.XLen)
	}
}

func storeType(bytes int) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		base, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		src, err := getSigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		addr := base + immSigned(in)
		v := memval.FromInt(src, bytes*8, 8, memval.LittleEndian, memval.TwosComplement)
		if err := mem.PutMemory(int(addr), v); err != nil {
			return memval.Value{}, err
		}
		return memval.Value{}, advancePC(mem, in.Address, in.XLen)
	}
}

func branchType(cond func(a, b int64) bool) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getSigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getSigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		var target int64
		if cond(a, b) {
			target = int64(in.Address) + immSigned(in)
		} else {
			target = int64(in.Address) + 4
		}
		return memval.Value{}, putRegisterOnly(mem, "pc", in.XLen, target)
	}
}

func branchTypeUnsigned(cond func(a, b uint64) bool) execFunc {
	return func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
		a, err := getUnsigned(mem, in.Rs1)
		if err != nil {
			return memval.Value{}, err
		}
		b, err := getUnsigned(mem, in.Rs2)
		if err != nil {
			return memval.Value{}, err
		}
		var target int64
		if cond(a, b) {
			target = int64(in.Address) + immSigned(in)
		} else {
			target = int64(in.Address) + 4
		}
		return memval.Value{}, putRegisterOnly(mem, "pc", in.XLen, target)
	}
}

func putRegisterOnly(mem ast.MemoryAccess, name string, xlen int, x int64) error {
	_, err := putSigned(mem, name, xlen, x)
	return err
}

func lui(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	v, err := putSigned(mem, in.Rd, in.XLen, immSigned(in))
	if err != nil {
		return memval.Value{}, err
	}
	return v, advancePC(mem, in.Address, in.XLen)
}

func auipc(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	v, err := putSigned(mem, in.Rd, in.XLen, int64(in.Address)+immSigned(in))
	if err != nil {
		return memval.Value{}, err
	}
	return v, advancePC(mem, in.Address, in.XLen)
}

func jal(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	v, err := putSigned(mem, in.Rd, in.XLen, int64(in.Address)+4)
	if err != nil {
		return memval.Value{}, err
	}
	target := int64(in.Address) + immSigned(in)
	return v, putRegisterOnly(mem, "pc", in.XLen, target)
}

func jalr(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	base, err := getSigned(mem, in.Rs1)
	if err != nil {
		return memval.Value{}, err
	}
	target := (base + immSigned(in)) &^ 1
	v, err := putSigned(mem, in.Rd, in.XLen, int64(in.Address)+4)
	if err != nil {
		return memval.Value{}, err
	}
	return v, putRegisterOnly(mem, "pc", in.XLen, target)
}

func simusleep(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	ms := immSigned(in)
	if ms < 0 {
		return memval.Value{}, ast.Fail("riscv: simusleep duration must not be negative").Error()
	}
	if err := mem.Sleep(ms, nil); err != nil {
		return memval.Value{}, err
	}
	return memval.Value{}, advancePC(mem, in.Address, in.XLen)
}

func simucrash(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	return memval.Value{}, ast.Fail("riscv: simucrash halted execution").Error()
}

var execTable = map[string]execFunc{
	"add": rType(func(a, b int64) int64 { return a + b }),
	"sub": rType(func(a, b int64) int64 { return a - b }),
	"and": rType(func(a, b int64) int64 { return a & b }),
	"or":  rType(func(a, b int64) int64 { return a | b }),
	"xor": rType(func(a, b int64) int64 { return a ^ b }),
	"sll": rTypeShift(func(a, b, mask int64) int64 { return a << uint(b&mask) }),
	"srl": rTypeUnsignedShift(func(a, b, mask uint64) int64 { return int64(a >> (b & mask)) }),
	"sra": rTypeShift(func(a, b, mask int64) int64 { return a >> uint(b&mask) }),
	"slt": rType(func(a, b int64) int64 {
		if a < b {
			return 1
		}
		return 0
	}),
	"sltu": rTypeUnsigned(func(a, b uint64) int64 {
		if a < b {
			return 1
		}
		return 0
	}),

	"addi":  iType(func(a, imm int64) int64 { return a + imm }),
	"slti":  iType(func(a, imm int64) int64 { if a < imm { return 1 }; return 0 }),
	"sltiu": iType(func(a, imm int64) int64 { if uint64(a) < uint64(imm) { return 1 }; return 0 }),
	"xori":  iType(func(a, imm int64) int64 { return a ^ imm }),
	"ori":   iType(func(a, imm int64) int64 { return a | imm }),
	"andi":  iType(func(a, imm int64) int64 { return a & imm }),
	"slli":  iTypeShift(func(a, imm, mask int64) int64 { return a << uint(imm&mask) }),
	"srli":  iTypeShift(func(a, imm, mask int64) int64 { return int64(uint64(a) >> uint(imm&mask)) }),
	"srai":  iTypeShift(func(a, imm, mask int64) int64 { return a >> uint(imm&mask) }),

	"lb":  loadType(1, true),
	"lh":  loadType(2, true),
	"lw":  loadType(4, true),
	"lbu": loadType(1, false),
	"lhu": loadType(2, false),

	"sb": storeType(1),
	"sh": storeType(2),
	"sw": storeType(4),

	"beq":  branchType(func(a, b int64) bool { return a == b }),
	"bne":  branchType(func(a, b int64) bool { return a != b }),
	"blt":  branchType(func(a, b int64) bool { return a < b }),
	"bge":  branchType(func(a, b int64) bool { return a >= b }),
	"bltu": branchTypeUnsigned(func(a, b uint64) bool { return a < b }),
	"bgeu": branchTypeUnsigned(func(a, b uint64) bool { return a >= b }),

	"lui":   lui,
	"auipc": auipc,
	"jal":   jal,
	"jalr":  jalr,

	"mul":    rType(func(a, b int64) int64 { return a * b }),
	"mulhu":  rTypeUnsigned(mulhu),
	"mulh":   rType(mulh),
	"mulhsu": mulhsuExec,
	"div":    rType(sdiv),
	"divu":   rTypeUnsigned(func(a, b uint64) int64 {
		if b == 0 {
			return -1
		}
		return int64(a / b)
	}),
	"rem": rType(srem),
	"remu": rTypeUnsigned(func(a, b uint64) int64 {
		if b == 0 {
			return int64(a)
		}
		return int64(a % b)
	}),

	"simusleep": simusleep,
	"simucrash": simucrash,
}

func sdiv(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == minInt64() && b == -1 {
		return a
	}
	return a / b
}

func srem(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == minInt64() && b == -1 {
		return 0
	}
	return a % b
}

func minInt64() int64 { return -1 << 63 }

func mulh(a, b int64) int64 {
	hi, _ := bits128(a, b)
	return hi
}

// mulhsuExec reads rs1 as signed and rs2 as unsigned, unlike the rest of
// the R-format table, so it is not built from rType/rTypeUnsigned.
func mulhsuExec(in *Instruction, mem ast.MemoryAccess) (memval.Value, error) {
	a, err := getSigned(mem, in.Rs1)
	if err != nil {
		return memval.Value{}, err
	}
	b, err := getUnsigned(mem, in.Rs2)
	if err != nil {
		return memval.Value{}, err
	}
	neg := a < 0
	ua := uint64(a)
	if neg {
		ua = uint64(-a)
	}
	hi, lo := mul64(ua, b)
	if neg {
		hi, lo = negate128(hi, lo)
	}
	_ = lo
	v, err := putSigned(mem, in.Rd, in.XLen, int64(hi))
	if err != nil {
		return memval.Value{}, err
	}
	return v, advancePC(mem, in.Address, in.XLen)
}

func mulhu(a, b uint64) int64 {
	hi, _ := mul64(a, b)
	return int64(hi)
}

func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xFFFFFFFF
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	lo = aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	hi = aHi * bHi

	carry := (lo >> 32) + (mid1 & mask32) + (mid2 & mask32)
	lo = (lo & mask32) | (carry << 32)
	hi += (mid1 >> 32) + (mid2 >> 32) + (carry >> 32)
	return hi, lo
}

func negate128(hi, lo uint64) (uint64, uint64) {
	lo = ^lo + 1
	hi = ^hi
	if lo == 0 {
		hi++
	}
	return hi, lo
}

func bits128(a, b int64) (hi, lo int64) {
	negA, negB := a < 0, b < 0
	ua, ub := uint64(a), uint64(b)
	if negA {
		ua = uint64(-a)
	}
	if negB {
		ub = uint64(-b)
	}
	h, l := mul64(ua, ub)
	if negA != negB {
		h, l = negate128(h, l)
	}
	return int64(h), int64(l)
}

package arch

import (
	"sort"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/lookbusy1344/riscv-sim/internal/registers"
)

// sortedKeys returns m's keys in a deterministic order, so alias register
// IDs are assigned the same way on every run.
func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RISC-V base opcodes, shared across rv32i/rv64i (RISC-V spec v2.2).
const (
	opLUI    = 0x37
	opAUIPC  = 0x17
	opJAL    = 0x6F
	opJALR   = 0x67
	opBranch = 0x63
	opLoad   = 0x03
	opStore  = 0x23
	opOpImm  = 0x13
	opOp     = 0x33
	opSystem = 0x73
)

func init() {
	RegisterFamily(&Family{
		Name: "riscv",
		Modules: map[string]Module{
			"rv32i": rv32iModule(),
			"rv64i": rv64iModule(32 /* base unit reused */),
			"rv32m": rvMModule("rv32m"),
			"rv64m": rvMModule("rv64m"),
		},
	})
}

func riscvIntegerUnit(xlen int) Unit {
	byName := make(map[string]registers.Info)
	byID := make(map[int]registers.Info)
	names := []string{
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
		"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
		"x24", "x25", "x26", "x27", "x28", "x29", "x30", "x31",
	}
	for i, name := range names {
		info := registers.Info{Name: name, ID: i, Size: xlen, Kind: registers.KindInteger, Constant: i == 0}
		byName[name] = info
		byID[i] = info
	}
	pc := registers.Info{Name: "pc", ID: 32, Size: xlen, Kind: registers.KindProgramCounter}
	byName["pc"] = pc
	byID[32] = pc

	// Conventional ABI aliases (RISC-V calling convention register names).
	aliasNames := map[string]string{
		"ra": "x1", "sp": "x2", "gp": "x3", "tp": "x4",
		"t0": "x5", "t1": "x6", "t2": "x7",
		"s0": "x8", "fp": "x8", "s1": "x9",
		"a0": "x10", "a1": "x11", "a2": "x12", "a3": "x13",
		"a4": "x14", "a5": "x15", "a6": "x16", "a7": "x17",
		"s2": "x18", "s3": "x19", "s4": "x20", "s5": "x21",
		"s6": "x22", "s7": "x23", "s8": "x24", "s9": "x25",
		"s10": "x26", "s11": "x27",
		"t3": "x28", "t4": "x29", "t5": "x30", "t6": "x31",
	}
	nextAliasID := 100
	for _, alias := range sortedKeys(aliasNames) {
		real := aliasNames[alias]
		parent := byName[real]
		id := nextAliasID
		nextAliasID++
		byName[alias] = registers.Info{Name: alias, ID: id, Size: xlen, Kind: registers.KindInteger, Enclosing: ptr(parent.ID), Offset: 0}
		byID[id] = byName[alias]
	}

	return Unit{Name: "integer", ByName: byName, ByID: byID, PC: "pc", Link: "x1"}
}

func ptr(i int) *int { return &i }

func rv32iModule() Module {
	return Module{
		Name:         "rv32i",
		WordSize:     32,
		ByteSize:     8,
		Endianness:   memval.LittleEndian,
		Alignment:    AlignRelaxed,
		Sign:         memval.TwosComplement,
		Units:        []Unit{riscvIntegerUnit(32)},
		Instructions: rv32iInstructions(),
	}
}

func rv64iModule(_ int) Module {
	m := rv32iModule()
	m.Name = "rv64i"
	m.WordSize = 64
	m.Units = []Unit{riscvIntegerUnit(64)}
	return m
}

func key(opcode uint64, fields ...[2]uint64) map[string]uint64 {
	m := map[string]uint64{"opcode": opcode}
	for _, f := range fields {
		switch f[0] {
		case 3:
			m["funct3"] = f[1]
		case 7:
			m["funct7"] = f[1]
		}
	}
	return m
}

func f3(v uint64) [2]uint64 { return [2]uint64{3, v} }
func f7(v uint64) [2]uint64 { return [2]uint64{7, v} }

func rv32iInstructions() map[string]InstructionInfo {
	ins := map[string]InstructionInfo{}
	add := func(mnemonic, format string, k map[string]uint64) {
		ins[mnemonic] = InstructionInfo{Mnemonic: mnemonic, Format: format, Length: 32, Key: k}
	}

	// R-format
	add("add", "R", key(opOp, f3(0x0), f7(0x00)))
	add("sub", "R", key(opOp, f3(0x0), f7(0x20)))
	add("sll", "R", key(opOp, f3(0x1), f7(0x00)))
	add("slt", "R", key(opOp, f3(0x2), f7(0x00)))
	add("sltu", "R", key(opOp, f3(0x3), f7(0x00)))
	add("xor", "R", key(opOp, f3(0x4), f7(0x00)))
	add("srl", "R", key(opOp, f3(0x5), f7(0x00)))
	add("sra", "R", key(opOp, f3(0x5), f7(0x20)))
	add("or", "R", key(opOp, f3(0x6), f7(0x00)))
	add("and", "R", key(opOp, f3(0x7), f7(0x00)))

	// I-format, arithmetic
	add("addi", "I", key(opOpImm, f3(0x0)))
	add("slti", "I", key(opOpImm, f3(0x2)))
	add("sltiu", "I", key(opOpImm, f3(0x3)))
	add("xori", "I", key(opOpImm, f3(0x4)))
	add("ori", "I", key(opOpImm, f3(0x6)))
	add("andi", "I", key(opOpImm, f3(0x7)))
	add("slli", "I", key(opOpImm, f3(0x1), f7(0x00)))
	add("srli", "I", key(opOpImm, f3(0x5), f7(0x00)))
	add("srai", "I", key(opOpImm, f3(0x5), f7(0x20)))

	// I-format, loads
	add("lb", "I", key(opLoad, f3(0x0)))
	add("lh", "I", key(opLoad, f3(0x1)))
	add("lw", "I", key(opLoad, f3(0x2)))
	add("lbu", "I", key(opLoad, f3(0x4)))
	add("lhu", "I", key(opLoad, f3(0x5)))

	// I-format, jalr
	add("jalr", "I", key(opJALR, f3(0x0)))

	// S-format, stores
	add("sb", "S", key(opStore, f3(0x0)))
	add("sh", "S", key(opStore, f3(0x1)))
	add("sw", "S", key(opStore, f3(0x2)))

	// SB-format, branches
	add("beq", "SB", key(opBranch, f3(0x0)))
	add("bne", "SB", key(opBranch, f3(0x1)))
	add("blt", "SB", key(opBranch, f3(0x4)))
	add("bge", "SB", key(opBranch, f3(0x5)))
	add("bltu", "SB", key(opBranch, f3(0x6)))
	add("bgeu", "SB", key(opBranch, f3(0x7)))

	// U-format
	add("lui", "U", key(opLUI))
	add("auipc", "U", key(opAUIPC))

	// UJ-format
	add("jal", "UJ", key(opJAL))

	// Simulator pseudo-instructions: fixed magic encodings (spec §6).
	ins["simusleep"] = InstructionInfo{Mnemonic: "simusleep", Format: "SIM", Length: 32, Key: map[string]uint64{"opcode": 0x72657374}}
	ins["simucrash"] = InstructionInfo{Mnemonic: "simucrash", Format: "SIM", Length: 32, Key: map[string]uint64{"opcode": 0x626f6f6d}}

	return ins
}

func rvMModule(name string) Module {
	ins := map[string]InstructionInfo{}
	add := func(mnemonic string, funct3 uint64) {
		ins[mnemonic] = InstructionInfo{Mnemonic: mnemonic, Format: "R", Length: 32, Key: key(opOp, f3(funct3), f7(0x01))}
	}
	add("mul", 0x0)
	add("mulh", 0x1)
	add("mulhsu", 0x2)
	add("mulhu", 0x3)
	add("div", 0x4)
	add("divu", 0x5)
	add("rem", 0x6)
	add("remu", 0x7)
	return Module{Name: name, Instructions: ins}
}

// Command riscvsim is the host binary for the RISC-V teaching interpreter:
// a thin cobra command tree over internal/project.Facade, grounded on the
// teacher's flag-driven main.go (direct-run / debugger / TUI modes) but
// restructured onto subcommands the way this codebase's other example,
// z80opt, lays out its cobra tree.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lookbusy1344/riscv-sim/config"
	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/project"
)

var (
	flagFamily     string
	flagModules    []string
	flagMemory     uint
	flagQueueDepth int
	flagConfigPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "riscvsim",
		Short: "RISC-V teaching interpreter — assemble and step RV32I/M programs",
	}
	rootCmd.PersistentFlags().StringVar(&flagFamily, "arch-family", "", "architecture family (default: from config)")
	rootCmd.PersistentFlags().StringSliceVar(&flagModules, "arch-modules", nil, "comma-separated architecture modules (default: from config)")
	rootCmd.PersistentFlags().UintVar(&flagMemory, "memory", 0, "memory size in bytes (default: from config)")
	rootCmd.PersistentFlags().IntVar(&flagQueueDepth, "queue-depth", 0, "scheduler task queue depth (default: from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: platform config dir)")

	rootCmd.AddCommand(
		newRunCmd(),
		newStepCmd(),
		newSnapshotCmd(),
		newTUICmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if flagConfigPath != "" {
		return config.LoadFrom(flagConfigPath)
	}
	return config.Load()
}

// newFacade brews the architecture formula from flags (falling back to the
// loaded config) and wires a fresh Facade to run source against.
func newFacade(cfg *config.Config) (*project.Facade, error) {
	family := cfg.Architecture.Family
	modules := cfg.Architecture.Modules
	if flagFamily != "" {
		family = flagFamily
	}
	if len(flagModules) > 0 {
		modules = flagModules
	}

	memBytes := int(cfg.Execution.MemoryBytes)
	if flagMemory > 0 {
		memBytes = int(flagMemory)
	}
	queueDepth := cfg.Scheduler.QueueDepth
	if flagQueueDepth > 0 {
		queueDepth = flagQueueDepth
	}

	return project.NewFacade(arch.Formula{Family: family, Modules: modules}, memBytes, queueDepth)
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified source path
	if err != nil {
		return "", fmt.Errorf("riscvsim: reading %s: %w", path, err)
	}
	return string(data), nil
}

// loadAndParse builds a Facade for file and parses it, printing any compile
// errors (and failing if any are SeverityError) before returning.
func loadAndParse(file string) (*project.Facade, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	f, err := newFacade(cfg)
	if err != nil {
		return nil, err
	}

	var compileErrs []ast.CompileError
	f.SetErrorCallback(func(ce ast.CompileError) { compileErrs = append(compileErrs, ce) })

	source, err := readSource(file)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Parse(source); err != nil {
		f.Close()
		return nil, err
	}

	hadFatal := false
	for _, ce := range compileErrs {
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %v\n", ce.Position.Filename, ce.Position.Line, ce.Position.Column, (&ce).Error())
		if ce.Severity == ast.SeverityError {
			hadFatal = true
		}
	}
	if hadFatal {
		f.Close()
		return nil, fmt.Errorf("riscvsim: %s failed to assemble", file)
	}
	return f, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.s>",
		Short: "Assemble and execute a program to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadAndParse(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := f.Execute(); err != nil {
				return fmt.Errorf("riscvsim: execution failed: %w", err)
			}
			printRegisters(f)
			return nil
		},
	}
}

func newStepCmd() *cobra.Command {
	var maxSteps int
	cmd := &cobra.Command{
		Use:   "step <file.s>",
		Short: "Execute a program one instruction at a time, printing each line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadAndParse(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			f.SetCurrentLineCallback(func(line int) { fmt.Printf("line %d\n", line) })

			for i := 0; maxSteps <= 0 || i < maxSteps; i++ {
				advanced, err := f.ExecuteNextLine()
				if err != nil {
					return fmt.Errorf("riscvsim: step %d: %w", i, err)
				}
				if !advanced {
					break
				}
			}
			printRegisters(f)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "maximum instructions to execute (0 = until halt)")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var separator string
	var lineLength int
	cmd := &cobra.Command{
		Use:   "snapshot <file.s> <out.json>",
		Short: "Assemble, run to completion, and write a project snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadAndParse(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := f.Execute(); err != nil {
				return fmt.Errorf("riscvsim: execution failed: %w", err)
			}

			snap, err := f.SnapshotJSON(separator, lineLength)
			if err != nil {
				return fmt.Errorf("riscvsim: building snapshot: %w", err)
			}
			pretty, err := indentJSON(snap)
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], pretty, 0o600)
		},
	}
	cmd.Flags().StringVar(&separator, "separator", ",", "hex byte separator in the memory snapshot")
	cmd.Flags().IntVar(&lineLength, "line-length", 16, "bytes per memory snapshot line")
	return cmd
}

func indentJSON(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui <file.s>",
		Short: "Launch the interactive text debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadAndParse(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			source, err := readSource(args[0])
			if err != nil {
				return err
			}
			return newTUI(f, source).run()
		},
	}
}

// printRegisters prints every register's current value, grouped by the
// architecture's own register units and sorted by name within each unit
// (so ABI aliases such as a0 are listed apart from their parent xN).
func printRegisters(f *project.Facade) {
	fmt.Println("registers:")
	for _, unit := range f.GetRegisterUnits() {
		names := make([]string, 0, len(unit.ByName))
		for name := range unit.ByName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := f.GetRegisterValue(name)
			if err != nil {
				continue
			}
			fmt.Printf("  %-6s 0x%s\n", name, v.Hex())
		}
	}
}

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/riscv-sim/internal/project"
)

// tui is the interactive text debugger: grounded on the teacher's
// debugger.TUI (tview.Flex panel layout, F-key shortcuts, a command input
// line at the bottom), rebuilt against project.Facade instead of a
// directly-held VM, so every panel refresh goes through the same proxy
// calls a remote GUI would use.
type tui struct {
	facade *project.Facade
	app    *tview.Application

	sourceView   *tview.TextView
	registerView *tview.TextView
	memoryView   *tview.TextView
	outputView   *tview.TextView
	commandInput *tview.InputField

	source      []string
	memoryAddr  int
	currentLine int
}

func newTUI(facade *project.Facade, source string) *tui {
	t := &tui{
		facade: facade,
		app:    tview.NewApplication(),
		source: strings.Split(source, "\n"),
	}
	t.build()
	return t
}

func (t *tui) build() {
	t.sourceView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	t.sourceView.SetBorder(true).SetTitle(" Source ")

	t.registerView = tview.NewTextView().SetDynamicColors(true)
	t.registerView.SetBorder(true).SetTitle(" Registers ")

	t.memoryView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.memoryView.SetBorder(true).SetTitle(" Memory ")

	t.outputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.outputView.SetBorder(true).SetTitle(" Output ")

	t.commandInput = tview.NewInputField().SetLabel("> ")
	t.commandInput.SetBorder(true).SetTitle(" Command (step/continue/break N/unbreak N/quit) ")
	t.commandInput.SetDoneFunc(t.handleCommand)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.registerView, 12, 0, false).
		AddItem(t.memoryView, 0, 1, false)

	mainContent := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(t.sourceView, 0, 2, false).
		AddItem(right, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.outputView, 7, 0, false).
		AddItem(t.commandInput, 3, 0, true)

	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			t.runCommand("continue")
			return nil
		case tcell.KeyF11:
			t.runCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.app.Stop()
			return nil
		}
		return event
	})

	t.facade.SetCurrentLineCallback(func(line int) {
		t.currentLine = line
		t.app.QueueUpdateDraw(t.refreshAll)
	})

	t.app.SetRoot(layout, true).SetFocus(t.commandInput)
}

func (t *tui) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := t.commandInput.GetText()
	t.commandInput.SetText("")
	if cmd != "" {
		t.runCommand(cmd)
	}
}

// runCommand dispatches one debugger command line, writing its result to
// the output view and refreshing every panel afterward.
func (t *tui) runCommand(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}
	var err error
	switch fields[0] {
	case "step", "s":
		_, err = t.facade.ExecuteNextLine()
	case "continue", "c":
		err = t.facade.Execute()
	case "break", "b":
		if len(fields) == 2 {
			line := atoiOrZero(fields[1])
			if !t.facade.SetBreakpoint(line) {
				err = fmt.Errorf("no instruction at line %d", line)
			}
		}
	case "unbreak":
		if len(fields) == 2 {
			t.facade.DeleteBreakpoint(atoiOrZero(fields[1]))
		}
	case "quit", "q":
		t.app.Stop()
		return
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}
	if err != nil {
		t.writeOutput(fmt.Sprintf("[red]error:[white] %v\n", err))
	}
	t.refreshAll()
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func (t *tui) writeOutput(text string) {
	fmt.Fprint(t.outputView, text)
	t.outputView.ScrollToEnd()
}

func (t *tui) refreshAll() {
	t.updateSourceView()
	t.updateRegisterView()
	t.updateMemoryView()
}

func (t *tui) updateSourceView() {
	var b strings.Builder
	for i, line := range t.source {
		lineNo := i + 1
		marker := "  "
		color := "white"
		if lineNo == t.currentLine {
			marker = "->"
			color = "yellow"
		}
		fmt.Fprintf(&b, "[%s]%s %4d: %s[white]\n", color, marker, lineNo, line)
	}
	t.sourceView.SetText(b.String())
}

func (t *tui) updateRegisterView() {
	var b strings.Builder
	for _, unit := range t.facade.GetRegisterUnits() {
		names := make([]string, 0, len(unit.ByName))
		for name := range unit.ByName {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			v, err := t.facade.GetRegisterValue(name)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "%-4s 0x%s  ", name, v.Hex())
			if (i+1)%3 == 0 {
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	t.registerView.SetText(b.String())
}

func (t *tui) updateMemoryView() {
	var b strings.Builder
	const rowBytes = 16
	for row := 0; row < 16; row++ {
		addr := t.memoryAddr + row*rowBytes
		v, err := t.facade.GetMemoryValueAt(addr, rowBytes)
		if err != nil {
			break
		}
		fmt.Fprintf(&b, "0x%04x: %s\n", addr, v.Hex())
	}
	t.memoryView.SetText(b.String())
}

func (t *tui) run() error {
	t.refreshAll()
	t.writeOutput("[green]riscvsim debugger[white] — F5 continue, F11 step, Ctrl-C quit\n")
	return t.app.Run()
}

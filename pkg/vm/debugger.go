// Package vm - execution tracing support, the adaptation of the
// teacher's interactive Debugger to a flat opcode dispatch loop. cinder
// has no message-send boundary to set a breakpoint on, so the
// breakpoint/step-mode machinery the teacher built for its
// tree-walking VM doesn't carry over; what does carry over is the
// shape of a debugger type bolted onto a VM and gated behind a CLI
// flag, printing one line per executed instruction.
package vm

import (
	"fmt"
	"io"

	"github.com/kristofer/cinder/pkg/disasm"
)

// Debugger prints one disassembled line per instruction the VM
// dispatches, plus the operand stack's contents at that point, the
// same pairing the teacher's ShowCurrentInstruction/ShowStack gave an
// interactive user one command at a time. cinder prints both
// unconditionally on every step since the dispatch loop has no place
// to pause and wait for a command.
type Debugger struct {
	out     io.Writer
	enabled bool
}

// NewDebugger returns a Debugger that writes trace lines to out.
func NewDebugger(out io.Writer) *Debugger {
	return &Debugger{out: out}
}

// Enable turns tracing on; Disable turns it back off. A VM checks
// Enabled before paying the cost of formatting a trace line.
func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

// Enabled reports whether the debugger should be consulted on this
// instruction.
func (d *Debugger) Enabled() bool { return d != nil && d.enabled }

// trace prints the instruction at offset in f's function, followed by
// the current operand stack, to the debugger's writer.
func (d *Debugger) trace(vm *VM, f *frame, offset int) {
	disasm.Instruction(d.out, f.closure.Function.Chunk, offset)
	d.showStack(vm)
}

// showStack prints the live operand stack bottom-to-top, the
// dispatch-loop analogue of the teacher's ShowStack command.
func (d *Debugger) showStack(vm *VM) {
	fmt.Fprint(d.out, "          ")
	for _, v := range vm.stack {
		fmt.Fprintf(d.out, "[ %s ]", v.String())
	}
	fmt.Fprintln(d.out)
}

// SetTrace installs (or removes, with nil) a Debugger on vm. Call
// before Interpret; the dispatch loop consults it once per
// instruction when non-nil and enabled.
func (vm *VM) SetTrace(d *Debugger) {
	vm.debugger = d
}

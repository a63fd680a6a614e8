package core

// The trigger detectors, the pulse generator and the clock generator are
// autonomous hardware state machines: small programs loaded into a PIO
// block's shared instruction memory and executed by independent sequencers
// with no CPU involvement. Core code describes them through this interface;
// platform code maps it onto the real fabric.

// PIO block indices. The glitch path (trigger detectors, pulse generator,
// fire strobe) lives on one block, the clock generator on the other so the
// two never compete for instruction memory.
const (
	GlitchBlock = 0
	ClockBlock  = 1
)

// InstructionMemSize is the per-block instruction memory capacity in words.
const InstructionMemSize = 32

// Program is a state machine program at a fixed load address. Programs use
// absolute jump targets, so each is assembled for its origin and must be
// loaded there.
type Program struct {
	Name         string
	Origin       uint8
	Instructions []uint16
}

// Len returns the program length in instruction words.
func (p *Program) Len() uint8 {
	return uint8(len(p.Instructions))
}

// SMConfig carries the per-state-machine configuration applied by
// PIODriver.Configure. The zero value of ClkDivWhole/ClkDivFrac means full
// system clock speed.
type SMConfig struct {
	// Program selects the entry point and wrap range.
	Program *Program

	// SetPin/SetCount map the SET instruction group.
	SetPin   GPIOPin
	SetCount uint8

	// SidesetPin maps a single non-optional side-set bit when SidesetCount
	// is 1. Side-set steals one bit from the delay field.
	SidesetPin   GPIOPin
	SidesetCount uint8

	// InPin is the base pin for IN/WAIT-pin instructions.
	InPin    GPIOPin
	HasInPin bool

	// JmpPin is the pin tested by JMP PIN.
	JmpPin    GPIOPin
	HasJmpPin bool

	// Input shift register behaviour.
	InShiftRight  bool
	AutoPush      bool
	PushThreshold uint8

	// State machine clock divider. Frequency = clock / (whole + frac/256).
	ClkDivWhole uint16
	ClkDivFrac  uint8
}

// PIODriver is the abstract interface to one PIO block.
//
// The driver tracks which programs are resident, so RemoveProgram is a no-op
// for a program that is not loaded. AddProgram fails when the program's
// fixed-origin window overlaps resident code: that is the hardware resource
// exhaustion surfaced by Glitcher.Arm.
type PIODriver interface {
	// CanAddProgram reports whether the program's window is free.
	CanAddProgram(p *Program) bool

	// AddProgram loads the program at its origin.
	AddProgram(p *Program) error

	// RemoveProgram frees the program's window if it is resident.
	RemoveProgram(p *Program)

	// Configure initialises a stopped state machine: applies cfg, resets
	// internal state and parks the program counter at the program origin.
	Configure(sm uint8, cfg SMConfig) error

	// SetEnabled starts or stops a state machine without touching its state.
	SetEnabled(sm uint8, enabled bool)

	// Restart clears transient execution state (shift counters, stalls).
	Restart(sm uint8)

	// ClearFIFOs drops all queued TX and RX words. Callers stop the machine
	// first; clearing a running machine's queue is a race.
	ClearFIFOs(sm uint8)

	// TxPut queues one parameter word, blocking while the FIFO is full.
	TxPut(sm uint8, v uint32)

	// TxEmpty reports whether the TX FIFO has been drained. This is the
	// completion heuristic: the pulse generator consumes its parameter
	// queue exactly once per arm cycle.
	TxEmpty(sm uint8) bool

	// PreloadY and PreloadISR seed scratch registers of a stopped machine
	// by pushing a word and executing pull/mov out of band.
	PreloadY(sm uint8, v uint32)
	PreloadISR(sm uint8, v uint32)

	// ClearIRQ clears a pending inter-machine IRQ flag so a stale release
	// cannot fire the pulse generator on the next arm.
	ClearIRQ(flag uint8)

	// BindOutput hands an output pad to the block, optionally with
	// pad-level output inversion, and sets its direction for sm.
	BindOutput(sm uint8, pin GPIOPin, invert bool) error

	// ObserveInput makes a pad's input visible to this block without
	// disturbing the peripheral that owns the pad. Used by the UART byte
	// trigger to listen on a line the hardware UART is receiving, and by
	// the clock block to watch the FIRED semaphore driven from the glitch
	// block.
	ObserveInput(pin GPIOPin) error
}

var pioDrivers [2]PIODriver

// SetPIODriver is called by target-specific code to register the driver for
// one PIO block.
func SetPIODriver(block int, d PIODriver) {
	pioDrivers[block] = d
}

// MustPIO returns the configured driver for a block or panics if missing.
func MustPIO(block int) PIODriver {
	d := pioDrivers[block]
	if d == nil {
		panic("PIO driver not configured")
	}
	return d
}

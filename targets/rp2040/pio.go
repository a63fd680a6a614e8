//go:build rp2040

package main

// core.PIODriver on the RP2040 PIO blocks via tinygo-org/pio. Programs are
// pre-encoded instruction words loaded at fixed origins; the driver tracks
// residency so core code sees instruction memory exhaustion as an AddProgram
// failure instead of a hardware fault.

import (
	"fmt"
	"runtime/volatile"
	"unsafe"

	"glitcher/core"

	"device/rp"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Instruction words executed out of band through SMx_INSTR to seed scratch
// registers and clear IRQ flags. Same ISA encodings as the loaded programs.
const (
	insPullBlock = 0x80a0 // pull block
	insMovYOSR   = 0xa047 // mov y, osr
	insMovISROSR = 0xa0c7 // mov isr, osr
	insIrqClear  = 0xc040 // irq clear 0, low bits select the flag
)

// smExec is the state machine reserved on each block for out-of-band
// instruction execution. Neither block allocates it to a program.
const smExec = 3

// PIOBlockDriver implements core.PIODriver for one PIO block.
type PIOBlockDriver struct {
	pio    *rp2pio.PIO
	sms    [4]rp2pio.StateMachine
	loaded map[string]*core.Program
}

// NewPIOBlockDriver claims all four state machines of a block and returns
// the driver. The glitch engine and clock generator own their blocks
// outright; nothing else may claim machines on them.
func NewPIOBlockDriver(pio *rp2pio.PIO) *PIOBlockDriver {
	d := &PIOBlockDriver{
		pio:    pio,
		loaded: make(map[string]*core.Program),
	}
	for i := uint8(0); i < 4; i++ {
		d.sms[i] = pio.StateMachine(i)
		d.sms[i].TryClaim()
	}
	return d
}

func (d *PIOBlockDriver) overlaps(p *core.Program) bool {
	for _, q := range d.loaded {
		if q.Name == p.Name {
			continue
		}
		if p.Origin < q.Origin+q.Len() && q.Origin < p.Origin+p.Len() {
			return true
		}
	}
	return false
}

// CanAddProgram reports whether the program's fixed-origin window is free.
func (d *PIOBlockDriver) CanAddProgram(p *core.Program) bool {
	if int(p.Origin)+len(p.Instructions) > core.InstructionMemSize {
		return false
	}
	return !d.overlaps(p)
}

// AddProgram loads the program at its origin.
func (d *PIOBlockDriver) AddProgram(p *core.Program) error {
	if _, ok := d.loaded[p.Name]; ok {
		return fmt.Errorf("pio%d: program %s already loaded", d.pio.BlockIndex(), p.Name)
	}
	if !d.CanAddProgram(p) {
		return fmt.Errorf("pio%d: no room for program %s", d.pio.BlockIndex(), p.Name)
	}
	// Absolute jump targets: the program must land exactly at its origin.
	if err := d.pio.AddProgramAtOffset(p.Instructions, int8(p.Origin), p.Origin); err != nil {
		return err
	}
	d.loaded[p.Name] = p
	return nil
}

// RemoveProgram frees the program's window if it is resident.
func (d *PIOBlockDriver) RemoveProgram(p *core.Program) {
	if _, ok := d.loaded[p.Name]; !ok {
		return
	}
	d.pio.ClearProgramSection(p.Origin, p.Len())
	delete(d.loaded, p.Name)
}

// Configure initialises a stopped state machine for a resident program and
// parks its program counter at the program origin.
func (d *PIOBlockDriver) Configure(sm uint8, cfg core.SMConfig) error {
	if cfg.Program == nil {
		return fmt.Errorf("pio%d: configure sm%d without program", d.pio.BlockIndex(), sm)
	}
	if _, ok := d.loaded[cfg.Program.Name]; !ok {
		return fmt.Errorf("pio%d: program %s not loaded", d.pio.BlockIndex(), cfg.Program.Name)
	}

	smCfg := rp2pio.DefaultStateMachineConfig()
	// SetWrap takes the wrap target (bottom) first, then the wrap (top).
	origin := cfg.Program.Origin
	smCfg.SetWrap(origin, origin+cfg.Program.Len()-1)

	if cfg.SetCount > 0 {
		smCfg.SetSetPins(machine.Pin(cfg.SetPin), cfg.SetCount)
	}
	if cfg.SidesetCount > 0 {
		smCfg.SetSidesetParams(cfg.SidesetCount, false, false)
		smCfg.SetSidesetPins(machine.Pin(cfg.SidesetPin))
	}
	if cfg.HasInPin {
		smCfg.SetInPins(machine.Pin(cfg.InPin))
	}
	if cfg.HasJmpPin {
		smCfg.SetJmpPin(machine.Pin(cfg.JmpPin))
	}

	threshold := uint16(cfg.PushThreshold)
	if threshold == 0 {
		threshold = 32
	}
	smCfg.SetInShift(cfg.InShiftRight, cfg.AutoPush, threshold)

	whole, frac := cfg.ClkDivWhole, cfg.ClkDivFrac
	if whole == 0 {
		whole, frac = 1, 0
	}
	smCfg.SetClkDivIntFrac(whole, frac)

	d.sms[sm].Init(origin, smCfg)
	return nil
}

// SetEnabled starts or stops a state machine.
func (d *PIOBlockDriver) SetEnabled(sm uint8, enabled bool) {
	d.sms[sm].SetEnabled(enabled)
}

// Restart clears transient execution state.
func (d *PIOBlockDriver) Restart(sm uint8) {
	d.sms[sm].Restart()
	d.sms[sm].ClkDivRestart()
}

// ClearFIFOs drops all queued TX and RX words.
func (d *PIOBlockDriver) ClearFIFOs(sm uint8) {
	d.sms[sm].ClearFIFOs()
}

// TxPut queues one parameter word, blocking while the FIFO is full.
func (d *PIOBlockDriver) TxPut(sm uint8, v uint32) {
	for d.sms[sm].IsTxFIFOFull() {
	}
	d.sms[sm].TxPut(v)
}

// TxEmpty reports whether the TX FIFO has drained.
func (d *PIOBlockDriver) TxEmpty(sm uint8) bool {
	return d.sms[sm].IsTxFIFOEmpty()
}

// PreloadY seeds the Y scratch register of a stopped machine.
func (d *PIOBlockDriver) PreloadY(sm uint8, v uint32) {
	d.sms[sm].TxPut(v)
	d.sms[sm].Exec(insPullBlock)
	d.sms[sm].Exec(insMovYOSR)
}

// PreloadISR seeds the ISR of a stopped machine.
func (d *PIOBlockDriver) PreloadISR(sm uint8, v uint32) {
	d.sms[sm].TxPut(v)
	d.sms[sm].Exec(insPullBlock)
	d.sms[sm].Exec(insMovISROSR)
}

// ClearIRQ clears a pending inter-machine IRQ flag. Executed on the spare
// machine so a running machine's pipeline is never touched.
func (d *PIOBlockDriver) ClearIRQ(flag uint8) {
	d.sms[smExec].Exec(insIrqClear | uint16(flag&0x7))
}

// BindOutput hands a pad to this block for output by sm, parked low, with
// optional pad-level output inversion.
func (d *PIOBlockDriver) BindOutput(sm uint8, pin core.GPIOPin, invert bool) error {
	mp := machine.Pin(pin)
	mp.Configure(machine.PinConfig{Mode: d.pio.PinMode()})
	setOutputInvert(mp, invert)
	d.sms[sm].SetPindirsConsecutive(mp, 1, true)
	d.sms[sm].SetPinsConsecutive(mp, 1, false)
	return nil
}

// ObserveInput makes a pad's input readable by this block without changing
// its function selection. The state machines sample the raw input signal of
// any GPIO, so enabling the pad's input buffer is all that is needed; a pad
// owned by the hardware UART keeps working undisturbed.
func (d *PIOBlockDriver) ObserveInput(pin core.GPIOPin) error {
	pad := (*volatile.Register32)(unsafe.Add(unsafe.Pointer(rp.PADS_BANK0), 4+4*uintptr(pin)))
	pad.SetBits(rp.PADS_BANK0_GPIO0_IE_Msk)
	return nil
}

// setOutputInvert applies OUTOVER on the pad so the same state machine
// output drives the normal and inverted glitch pads simultaneously.
func setOutputInvert(pin machine.Pin, invert bool) {
	var over uint32
	if invert {
		over = rp.IO_BANK0_GPIO0_CTRL_OUTOVER_INVERT
	}
	ctrl := (*volatile.Register32)(unsafe.Add(unsafe.Pointer(rp.IO_BANK0), 4+8*uintptr(pin)))
	ctrl.ReplaceBits(over, 0x3, uint8(rp.IO_BANK0_GPIO0_CTRL_OUTOVER_Pos))
}

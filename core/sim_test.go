package core

import (
	"fmt"
	"testing"
)

// Simulated drivers for host-side tests, registered through the same HAL
// singletons the real target uses.

type simGPIO struct {
	state map[GPIOPin]bool
	mode  map[GPIOPin]string
}

func newSimGPIO() *simGPIO {
	return &simGPIO{
		state: make(map[GPIOPin]bool),
		mode:  make(map[GPIOPin]string),
	}
}

func (s *simGPIO) ConfigureOutput(pin GPIOPin) error {
	s.mode[pin] = "out"
	return nil
}

func (s *simGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	s.mode[pin] = "in-pullup"
	s.state[pin] = true
	return nil
}

func (s *simGPIO) ConfigureInputPullDown(pin GPIOPin) error {
	s.mode[pin] = "in-pulldown"
	s.state[pin] = false
	return nil
}

func (s *simGPIO) SetPin(pin GPIOPin, value bool) error {
	s.state[pin] = value
	return nil
}

func (s *simGPIO) GetPin(pin GPIOPin) (bool, error) {
	return s.state[pin], nil
}

type simSM struct {
	enabled bool
	cfg     SMConfig
	tx      []uint32
	regY    uint32
	regISR  uint32
}

// simPIO models one PIO block: bounded instruction memory with fixed-origin
// windows, four state machines and the shared IRQ flags. It records an event
// log so tests can assert sequencing (generator before detector, stop before
// flush).
type simPIO struct {
	loaded   map[string]*Program
	sms      [4]simSM
	irq      map[uint8]bool
	observed map[GPIOPin]bool
	bound    map[GPIOPin]bool
	inverted map[GPIOPin]bool
	events   []string
}

func newSimPIO() *simPIO {
	return &simPIO{
		loaded:   make(map[string]*Program),
		irq:      make(map[uint8]bool),
		observed: make(map[GPIOPin]bool),
		bound:    make(map[GPIOPin]bool),
		inverted: make(map[GPIOPin]bool),
	}
}

func (s *simPIO) record(format string, args ...interface{}) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

func (s *simPIO) overlaps(p *Program) bool {
	for _, q := range s.loaded {
		if q.Name == p.Name {
			continue
		}
		if p.Origin < q.Origin+q.Len() && q.Origin < p.Origin+p.Len() {
			return true
		}
	}
	return false
}

func (s *simPIO) CanAddProgram(p *Program) bool {
	if int(p.Origin)+len(p.Instructions) > InstructionMemSize {
		return false
	}
	return !s.overlaps(p)
}

func (s *simPIO) AddProgram(p *Program) error {
	if _, ok := s.loaded[p.Name]; ok {
		return fmt.Errorf("sim: program %s already loaded", p.Name)
	}
	if !s.CanAddProgram(p) {
		return fmt.Errorf("sim: no room for program %s", p.Name)
	}
	s.loaded[p.Name] = p
	s.record("load %s", p.Name)
	return nil
}

func (s *simPIO) RemoveProgram(p *Program) {
	if _, ok := s.loaded[p.Name]; ok {
		delete(s.loaded, p.Name)
		s.record("unload %s", p.Name)
	}
}

func (s *simPIO) Configure(sm uint8, cfg SMConfig) error {
	if cfg.Program == nil {
		return fmt.Errorf("sim: configure sm%d without program", sm)
	}
	if _, ok := s.loaded[cfg.Program.Name]; !ok {
		return fmt.Errorf("sim: configure sm%d with unloaded program %s", sm, cfg.Program.Name)
	}
	s.sms[sm].cfg = cfg
	s.record("configure sm%d %s", sm, cfg.Program.Name)
	return nil
}

func (s *simPIO) SetEnabled(sm uint8, enabled bool) {
	if s.sms[sm].enabled == enabled {
		return
	}
	s.sms[sm].enabled = enabled
	if enabled {
		s.record("enable sm%d", sm)
	} else {
		s.record("disable sm%d", sm)
	}
}

func (s *simPIO) Restart(sm uint8) {
	s.record("restart sm%d", sm)
}

func (s *simPIO) ClearFIFOs(sm uint8) {
	s.sms[sm].tx = nil
	s.record("clearfifo sm%d", sm)
}

func (s *simPIO) TxPut(sm uint8, v uint32) {
	if len(s.sms[sm].tx) >= 4 {
		panic("sim: tx fifo overflow")
	}
	s.sms[sm].tx = append(s.sms[sm].tx, v)
}

func (s *simPIO) TxEmpty(sm uint8) bool {
	return len(s.sms[sm].tx) == 0
}

func (s *simPIO) PreloadY(sm uint8, v uint32) {
	s.sms[sm].regY = v
}

func (s *simPIO) PreloadISR(sm uint8, v uint32) {
	s.sms[sm].regISR = v
}

func (s *simPIO) ClearIRQ(flag uint8) {
	s.irq[flag] = false
	s.record("clearirq %d", flag)
}

func (s *simPIO) BindOutput(sm uint8, pin GPIOPin, invert bool) error {
	s.bound[pin] = true
	s.inverted[pin] = invert
	return nil
}

func (s *simPIO) ObserveInput(pin GPIOPin) error {
	s.observed[pin] = true
	return nil
}

// fireHardwareTrigger emulates the autonomous fire: the pulse generator
// consumes its whole parameter queue.
func (s *simPIO) fireHardwareTrigger() {
	s.sms[smPulseGen].tx = nil
}

func (s *simPIO) isLoaded(p *Program) bool {
	_, ok := s.loaded[p.Name]
	return ok
}

// eventIndex returns the position of the first matching event, or -1.
func (s *simPIO) eventIndex(ev string) int {
	for i, e := range s.events {
		if e == ev {
			return i
		}
	}
	return -1
}

type simRig struct {
	g     *Glitcher
	pio0  *simPIO
	pio1  *simPIO
	gpio  *simGPIO
	clock *ClockGen
}

func newSimRig(t *testing.T) *simRig {
	t.Helper()
	rig := &simRig{
		pio0: newSimPIO(),
		pio1: newSimPIO(),
		gpio: newSimGPIO(),
	}
	SetGPIODriver(rig.gpio)
	SetPIODriver(GlitchBlock, rig.pio0)
	SetPIODriver(ClockBlock, rig.pio1)
	rig.g = NewGlitcher()
	rig.clock = NewClockGen()
	rig.g.AttachClock(rig.clock)
	if err := rig.g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return rig
}

func (r *simRig) mustArm(t *testing.T) {
	t.Helper()
	if err := r.g.Arm(); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
}

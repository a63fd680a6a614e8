// Glitch timing and arming engine.
//
// The engine sequences three autonomous hardware state machines on the
// glitch PIO block: a trigger detector (GPIO edge or UART byte match), the
// pulse generator and a manual-fire strobe. Once armed, trigger detection
// and pulse emission happen entirely in hardware; the control code only
// polls for completion through the parameter-queue-empty heuristic.
package core

import "errors"

// TriggerType selects which trigger detector variant is loaded when arming.
type TriggerType uint8

const (
	TriggerNone TriggerType = iota
	TriggerGPIO
	TriggerUART
)

func (t TriggerType) String() string {
	switch t {
	case TriggerGPIO:
		return "GPIO"
	case TriggerUART:
		return "UART"
	}
	return "NONE"
}

// Edge selects the GPIO trigger polarity.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
)

func (e Edge) String() string {
	if e == EdgeFalling {
		return "FALLING"
	}
	return "RISING"
}

// Config holds the glitch parameters. All timing is in system clock cycles.
type Config struct {
	PauseCycles uint32
	WidthCycles uint32
	GapCycles   uint32
	Count       uint32

	Trigger     TriggerType
	TriggerPin  GPIOPin
	TriggerEdge Edge
	TriggerByte uint8
}

// Flags is the externally visible system state. Only Armed is maintained by
// the engine itself; the remaining bits belong to higher-level callers.
type Flags struct {
	Armed     bool
	Running   bool
	Triggered bool
	Finished  bool
	Error     bool
}

var (
	// ErrAlreadyArmed is returned by Arm when a previous arm cycle is
	// still pending.
	ErrAlreadyArmed = errors.New("glitch: already armed")

	// ErrNotArmed is returned by Execute when the system is disarmed.
	ErrNotArmed = errors.New("glitch: not armed")

	// ErrNoProgramSpace is returned by Arm when the trigger detector
	// program does not fit in the block's instruction memory.
	ErrNoProgramSpace = errors.New("glitch: no instruction memory for trigger program")
)

// Glitcher owns the glitch configuration, the arm/disarm state machine and
// the fire counter. There is exactly one logical instance; the control
// program is single-threaded, so no locking is needed.
type Glitcher struct {
	cfg   Config
	flags Flags
	count uint32
	clock *ClockGen
}

func defaultConfig() Config {
	return Config{
		PauseCycles: 0, // minimum latency by default
		WidthCycles: 100,
		GapCycles:   100,
		Count:       1,
		Trigger:     TriggerNone,
		TriggerPin:  PinTriggerIn,
		TriggerEdge: EdgeRising,
	}
}

// NewGlitcher returns a disarmed engine with default configuration.
// Call Init before arming.
func NewGlitcher() *Glitcher {
	return &Glitcher{cfg: defaultConfig()}
}

// AttachClock couples the auxiliary clock generator so its boost is armed on
// every Disarmed->Armed transition.
func (g *Glitcher) AttachClock(c *ClockGen) {
	g.clock = c
}

// Init claims the semaphore pins and loads the resident programs (pulse
// generator and fire strobe). Trigger programs are loaded per arm cycle.
func (g *Glitcher) Init() error {
	gpio := MustGPIO()
	if err := gpio.ConfigureOutput(PinArmed); err != nil {
		return err
	}
	if err := gpio.SetPin(PinArmed, false); err != nil {
		return err
	}
	if err := gpio.ConfigureOutput(PinFired); err != nil {
		return err
	}
	if err := gpio.SetPin(PinFired, false); err != nil {
		return err
	}

	p := MustPIO(GlitchBlock)
	if err := p.AddProgram(pulseGeneratorProgram); err != nil {
		return err
	}
	if err := p.AddProgram(fireStrobeProgram); err != nil {
		return err
	}
	debugf("glitch: resident programs loaded, pulse_generator@%d fire_strobe@%d",
		pulseGeneratorProgram.Origin, fireStrobeProgram.Origin)
	return nil
}

// Config returns the live configuration for direct mutation by the command
// layer. Changing it while armed takes effect on the next arm.
func (g *Glitcher) Config() *Config {
	return &g.cfg
}

// Flags returns the live system flags.
func (g *Glitcher) Flags() *Flags {
	return &g.flags
}

// SetPause sets the delay between trigger and first pulse, in cycles.
func (g *Glitcher) SetPause(cycles uint32) { g.cfg.PauseCycles = cycles }

// SetWidth sets the active pulse width, in cycles.
func (g *Glitcher) SetWidth(cycles uint32) { g.cfg.WidthCycles = cycles }

// SetGap sets the idle time between pulses, in cycles.
func (g *Glitcher) SetGap(cycles uint32) { g.cfg.GapCycles = cycles }

// SetCount sets the number of pulses per trigger event.
func (g *Glitcher) SetCount(n uint32) { g.cfg.Count = n }

// SetTriggerType selects the trigger detector variant for the next arm.
func (g *Glitcher) SetTriggerType(t TriggerType) { g.cfg.Trigger = t }

// SetTriggerPin configures the GPIO trigger input and edge.
func (g *Glitcher) SetTriggerPin(pin GPIOPin, edge Edge) {
	g.cfg.TriggerPin = pin
	g.cfg.TriggerEdge = edge
}

// SetTriggerByte configures the UART trigger match byte.
func (g *Glitcher) SetTriggerByte(b uint8) { g.cfg.TriggerByte = b }

// Arm transitions Disarmed -> Armed: clears the stale FIRED semaphore, tears
// down any resident trigger detector, loads the configured variant, readies
// the pulse generator and only then enables the detector, so a trigger can
// never race a half-loaded generator.
func (g *Glitcher) Arm() error {
	if g.flags.Armed {
		return ErrAlreadyArmed
	}

	p := MustPIO(GlitchBlock)
	gpio := MustGPIO()

	// FIRED may still be high from the previous cycle.
	if err := gpio.SetPin(PinFired, false); err != nil {
		return err
	}

	// Full stop+flush of both trigger machines; no graceful teardown path
	// is assumed to exist.
	p.SetEnabled(smEdgeDetect, false)
	p.SetEnabled(smUARTTrigger, false)
	p.ClearFIFOs(smEdgeDetect)
	p.ClearFIFOs(smUARTTrigger)

	// Free the trigger window before loading the new variant. Removing
	// every variant is simpler than tracking which one is resident.
	for _, tp := range triggerPrograms {
		p.RemoveProgram(tp)
	}

	// A stale release flag would fire the generator the moment it loads.
	p.ClearIRQ(releaseIRQ)

	// Load and configure the detector, but do not start it yet.
	switch g.cfg.Trigger {
	case TriggerGPIO:
		if err := g.prepareEdgeTrigger(); err != nil {
			return err
		}
	case TriggerUART:
		if err := g.prepareUARTTrigger(); err != nil {
			return err
		}
	}

	// The pulse generator must be loaded, parameterised and running
	// before any detector can raise the release IRQ.
	if err := g.armPulseGenerator(); err != nil {
		return err
	}

	switch g.cfg.Trigger {
	case TriggerGPIO:
		p.SetEnabled(smEdgeDetect, true)
	case TriggerUART:
		p.SetEnabled(smUARTTrigger, true)
	}

	// Clock boost parameters are consumed when FIRED rises; loading them
	// here, and only here, keeps a boost from following anything but a
	// fresh arm.
	if g.clock != nil {
		g.clock.armBoost(g.cfg.Count)
	}

	if err := gpio.SetPin(PinArmed, true); err != nil {
		return err
	}
	g.flags.Armed = true
	debugf("glitch: armed, trigger=%s", g.cfg.Trigger.String())
	return nil
}

// Disarm transitions to Disarmed. Safe to call at any time, including while
// a fire is mid-flight; a pulse sequence already running in hardware
// completes regardless.
func (g *Glitcher) Disarm() {
	if !g.flags.Armed {
		return
	}
	g.teardown()
	debugf("glitch: disarmed")
}

// teardown stops all machines and clears pending state. Machines are
// stopped before their FIFOs are flushed. Programs stay resident until the
// next arm, which keeps disarm cheap.
func (g *Glitcher) teardown() {
	gpio := MustGPIO()
	p := MustPIO(GlitchBlock)

	_ = gpio.SetPin(PinArmed, false)

	p.SetEnabled(smEdgeDetect, false)
	p.SetEnabled(smPulseGen, false)
	p.SetEnabled(smUARTTrigger, false)

	p.ClearIRQ(releaseIRQ)

	p.ClearFIFOs(smEdgeDetect)
	p.ClearFIFOs(smPulseGen)
	p.ClearFIFOs(smUARTTrigger)

	g.flags.Armed = false
}

// Execute fires one pulse sequence immediately, bypassing the trigger
// detector, then disarms. Valid only while armed.
func (g *Glitcher) Execute() error {
	if !g.flags.Armed {
		return ErrNotArmed
	}

	p := MustPIO(GlitchBlock)

	// The strobe raises FIRED and the release IRQ. The UART trigger shares
	// this machine, so stop whatever is running on it before reconfiguring.
	p.SetEnabled(smFireStrobe, false)
	if err := p.BindOutput(smFireStrobe, PinFired, false); err != nil {
		return err
	}
	if err := p.Configure(smFireStrobe, SMConfig{
		Program:  fireStrobeProgram,
		SetPin:   PinFired,
		SetCount: 1,
	}); err != nil {
		return err
	}
	p.SetEnabled(smFireStrobe, true)
	BusyWaitMicros(1)
	p.SetEnabled(smFireStrobe, false)

	g.count++
	g.teardown()
	debugf("glitch: manual fire, count=%d", g.count)
	return nil
}

// Count returns the number of completed pulse sequences. While armed with a
// hardware trigger it also polls the completion heuristic: the pulse
// generator's parameter queue is loaded exactly once per arm and drained
// only by actual emission, so an empty queue means the sequence ran. On
// detection the counter is bumped and the system fully disarms.
func (g *Glitcher) Count() uint32 {
	if g.flags.Armed && g.cfg.Trigger != TriggerNone &&
		MustPIO(GlitchBlock).TxEmpty(smPulseGen) {
		g.count++
		g.teardown()
		debugf("glitch: hardware fire detected, count=%d", g.count)
	}
	return g.count
}

// Reset disarms if needed and restores configuration, flags and counter to
// power-on defaults.
func (g *Glitcher) Reset() {
	if g.flags.Armed {
		g.teardown()
	}
	g.cfg = defaultConfig()
	g.flags = Flags{}
	g.count = 0
}

// UpdateFlags is the periodic housekeeping hook, safe to call on every main
// loop iteration. It runs the completion poll so an autonomous fire is
// reconciled into count/armed state without an explicit Count call.
func (g *Glitcher) UpdateFlags() {
	g.Count()
}

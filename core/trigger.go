package core

// Trigger detector variants. Each is an independently loadable program that
// occupies the shared trigger window; arming loads exactly one. The
// detectors raise FIRED and the release IRQ themselves, so detection latency
// is bounded by the program loop, not by software.

// prepareEdgeTrigger loads and configures the GPIO edge detector. The input
// is pulled to the idle level for the configured edge so a floating line
// cannot satisfy the wait chain. The machine is left stopped; Arm enables it
// once the pulse generator is ready.
func (g *Glitcher) prepareEdgeTrigger() error {
	p := MustPIO(GlitchBlock)
	gpio := MustGPIO()

	var prog *Program
	var err error
	if g.cfg.TriggerEdge == EdgeRising {
		prog = edgeDetectRisingProgram
		err = gpio.ConfigureInputPullDown(g.cfg.TriggerPin)
	} else {
		prog = edgeDetectFallingProgram
		err = gpio.ConfigureInputPullUp(g.cfg.TriggerPin)
	}
	if err != nil {
		return err
	}

	if !p.CanAddProgram(prog) {
		return ErrNoProgramSpace
	}
	if err := p.AddProgram(prog); err != nil {
		return err
	}
	debugf("glitch: %s loaded @%d", prog.Name, prog.Origin)

	// The detector drives FIRED on match.
	if err := p.BindOutput(smEdgeDetect, PinFired, false); err != nil {
		return err
	}

	p.ClearFIFOs(smEdgeDetect)
	p.Restart(smEdgeDetect)
	return p.Configure(smEdgeDetect, SMConfig{
		Program:   prog,
		SetPin:    PinFired,
		SetCount:  1,
		InPin:     g.cfg.TriggerPin,
		HasInPin:  true,
		JmpPin:    g.cfg.TriggerPin,
		HasJmpPin: true,
	})
}

// prepareUARTTrigger loads and configures the UART byte-match detector. The
// sampler is a passive observer of the target UART RX pad: the hardware UART
// keeps receiving the line for protocol purposes while this machine decodes
// it in parallel at 8x oversampling. The machine is left stopped until the
// pulse generator is ready.
func (g *Glitcher) prepareUARTTrigger() error {
	p := MustPIO(GlitchBlock)

	prog := uartRxMatchProgram
	if !p.CanAddProgram(prog) {
		return ErrNoProgramSpace
	}
	if err := p.AddProgram(prog); err != nil {
		return err
	}
	debugf("glitch: %s loaded @%d, byte=0x%02x", prog.Name, prog.Origin, g.cfg.TriggerByte)

	if err := p.ObserveInput(PinTargetRX); err != nil {
		return err
	}
	if err := p.BindOutput(smUARTTrigger, PinFired, false); err != nil {
		return err
	}

	whole, frac := clkDiv8x(DefaultTriggerBaud)
	p.ClearFIFOs(smUARTTrigger)
	p.Restart(smUARTTrigger)
	if err := p.Configure(smUARTTrigger, SMConfig{
		Program:      prog,
		SetPin:       PinFired,
		SetCount:     1,
		InPin:        PinTargetRX,
		HasInPin:     true,
		JmpPin:       PinTargetRX,
		HasJmpPin:    true,
		InShiftRight: true, // LSB first; eight samples land in bits 31:24
		ClkDivWhole:  whole,
		ClkDivFrac:   frac,
	}); err != nil {
		return err
	}

	// Match word positioned where the eight right-shifted samples end up.
	p.TxPut(smUARTTrigger, uint32(g.cfg.TriggerByte)<<24)
	return nil
}

// clkDiv8x returns the divider that runs a state machine at eight times the
// given baud rate.
func clkDiv8x(baud uint32) (uint16, uint8) {
	target := 8 * baud
	sys := SystemClockHz()
	whole := sys / target
	frac := (sys % target) * 256 / target
	return uint16(whole), uint8(frac)
}

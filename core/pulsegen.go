package core

// pulseOverheadCycles is the fixed state-transition cost of one pulse loop
// iteration. Requested width/gap values above the floor are compensated so
// the emitted duration matches the request; values at or below it are used
// as-is rather than underflowing.
const pulseOverheadCycles = 5

// pullPreambleCycles is the fixed latency between the release IRQ and the
// start of the pause countdown: one cycle to complete the wait plus the
// seven parameter pull/mov instructions that follow it. The pulls run after
// release so the queue stays intact while armed; the cost is taken out of
// the requested pause instead.
const pullPreambleCycles = 8

// armPulseGenerator fully resets the pulse generator, hands it the output
// pads, loads the timing parameters and starts it. The machine then
// self-parameterises from its FIFO and blocks on the release IRQ, so once
// this returns the generator responds to a trigger with zero software
// involvement.
func (g *Glitcher) armPulseGenerator() error {
	p := MustPIO(GlitchBlock)

	if err := p.BindOutput(smPulseGen, PinGlitchOut, false); err != nil {
		return err
	}
	// The inverted output is the same waveform with pad-level inversion.
	if err := p.BindOutput(smPulseGen, PinGlitchOutInv, true); err != nil {
		return err
	}

	p.ClearFIFOs(smPulseGen)
	p.Restart(smPulseGen)
	if err := p.Configure(smPulseGen, SMConfig{
		Program:      pulseGeneratorProgram,
		SetPin:       PinGlitchOut,
		SetCount:     1,
		SidesetPin:   PinGlitchOutInv,
		SidesetCount: 1,
		// full system clock speed; timing resolution is one cycle
	}); err != nil {
		return err
	}

	pause := g.cfg.PauseCycles
	if pause > pullPreambleCycles {
		pause -= pullPreambleCycles
	}
	width := compensateOverhead(g.cfg.WidthCycles)
	gap := compensateOverhead(g.cfg.GapCycles)
	var reps uint32
	if g.cfg.Count > 0 {
		reps = g.cfg.Count - 1 // the hardware loop runs reps+1 times
	}

	// Parameter order is fixed by the program: pause, count-1, width, gap.
	// Four words, exactly one FIFO depth: the queue is loaded once per arm
	// and drained only by emission, which is what makes the queue-empty
	// completion heuristic sound.
	p.TxPut(smPulseGen, pause)
	p.TxPut(smPulseGen, reps)
	p.TxPut(smPulseGen, width)
	p.TxPut(smPulseGen, gap)

	p.SetEnabled(smPulseGen, true)
	return nil
}

func compensateOverhead(cycles uint32) uint32 {
	if cycles > pulseOverheadCycles {
		return cycles - pulseOverheadCycles
	}
	return cycles
}

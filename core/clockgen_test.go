package core

import "testing"

func TestClockEnableRequiresFrequency(t *testing.T) {
	rig := newSimRig(t)

	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if rig.clock.IsEnabled() {
		t.Error("clock enabled with no frequency set")
	}
	if rig.pio1.isLoaded(clockBoostProgram) {
		t.Error("clock program loaded with no frequency set")
	}
}

func TestClockEnablePreloadsHalfPeriods(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000) // 1 MHz from a 150 MHz system clock

	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if !rig.clock.IsEnabled() {
		t.Fatal("clock not enabled")
	}

	sm := rig.pio1.sms[smClockGen]
	if sm.regY != 74 { // 150e6/2/1e6 - 1
		t.Errorf("normal half-period = %d, want 74", sm.regY)
	}
	if sm.regISR != 36 { // boosted: half of 75, minus one
		t.Errorf("boost half-period = %d, want 36", sm.regISR)
	}
	if !sm.enabled {
		t.Error("clock machine not running")
	}
	if !rig.pio1.observed[PinFired] {
		t.Error("clock block does not observe the FIRED semaphore")
	}
}

func TestClockEnableIsIdempotent(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(2_000_000)
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("second Enable failed: %v", err)
	}
	if got := rig.clock.Frequency(); got != 2_000_000 {
		t.Errorf("frequency = %d, want 2000000", got)
	}
}

func TestSetFrequencyWhileRunningRestarts(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	rig.pio1.events = nil

	rig.clock.SetFrequency(2_000_000)

	if !rig.clock.IsEnabled() {
		t.Fatal("clock lost enable across frequency change")
	}
	stop := rig.pio1.eventIndex("disable sm0")
	start := rig.pio1.eventIndex("enable sm0")
	if stop < 0 || start < 0 || stop > start {
		t.Errorf("expected disable->reconfigure->enable, got %v", rig.pio1.events)
	}
	if got := rig.pio1.sms[smClockGen].regY; got != 36 {
		t.Errorf("half-period after change = %d, want 36", got)
	}
}

func TestSetFrequencyWhileDisabledStaysDisabled(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	if rig.clock.IsEnabled() {
		t.Error("SetFrequency enabled a disabled clock")
	}
}

func TestClockDisableParksPinLow(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	rig.gpio.SetPin(PinClockOut, true) // pretend the wave left it high

	rig.clock.Disable()

	if rig.clock.IsEnabled() {
		t.Error("still enabled after Disable")
	}
	if on, _ := rig.gpio.GetPin(PinClockOut); on {
		t.Error("clock pin left high after Disable")
	}
	if rig.pio1.sms[smClockGen].enabled {
		t.Error("clock machine still running after Disable")
	}
}

func TestBoostArmedOncePerArmCycle(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	rig.g.SetCount(4)

	rig.mustArm(t)

	tx := rig.pio1.sms[smClockGen].tx
	if len(tx) != 2 || tx[0] != 4 || tx[1] != 74 {
		t.Errorf("boost queue = %v, want [4 74]", tx)
	}

	// A fire-less disarm leaves the queued pair in the FIFO; re-arming
	// appends another. Both pairs sit within the 4-deep FIFO and the next
	// FIRED consumes one pair, so carryover is harmless, but the queue
	// contents after a re-arm are exactly two pairs, not one.
	rig.g.Disarm()
	rig.mustArm(t)
	tx = rig.pio1.sms[smClockGen].tx
	want := []uint32{4, 74, 4, 74}
	if len(tx) != len(want) {
		t.Fatalf("boost queue after re-arm = %v, want %v", tx, want)
	}
	for i := range want {
		if tx[i] != want[i] {
			t.Errorf("boost queue[%d] = %d, want %d", i, tx[i], want[i])
		}
	}
}

func TestNoBoostWhenClockDisabled(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	// Clock never enabled: arming must not queue boost parameters.
	rig.mustArm(t)

	if got := len(rig.pio1.sms[smClockGen].tx); got != 0 {
		t.Errorf("boost queue length = %d, want 0 with clock disabled", got)
	}
}

func TestEnableAfterDisableDoesNotBoostWithoutArm(t *testing.T) {
	rig := newSimRig(t)
	rig.clock.SetFrequency(1_000_000)
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	rig.mustArm(t)
	rig.g.Disarm()
	rig.clock.Disable()

	// A later unrelated enable must not inherit boost parameters.
	if err := rig.clock.Enable(); err != nil {
		t.Fatalf("re-Enable failed: %v", err)
	}
	if got := len(rig.pio1.sms[smClockGen].tx); got != 0 {
		t.Errorf("boost queue length = %d after bare enable, want 0", got)
	}
}

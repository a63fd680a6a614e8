package core

// Board pin assignment.
//
// GP0/GP1 are reserved for the pulse-platform UART and GP4/GP5 for the
// target UART; those peripherals live outside this package but the glitch
// engine observes the target RX line (GP5) for the UART byte trigger.
const (
	PinGlitchOut    GPIOPin = 2  // normal-polarity glitch output
	PinTriggerIn    GPIOPin = 3  // default GPIO trigger input
	PinTargetRX     GPIOPin = 5  // target UART RX, passively observed
	PinClockOut     GPIOPin = 6  // auxiliary clock generator output
	PinArmed        GPIOPin = 9  // ARMED semaphore, software-driven
	PinGlitchOutInv GPIOPin = 11 // inverted-polarity glitch output
	PinFired        GPIOPin = 12 // FIRED semaphore, set by trigger hardware
	PinStatusLED    GPIOPin = 25
)

// State machine allocation on the glitch PIO block. The strobe machine is
// reused for the UART trigger; the two are never active at the same time.
const (
	smEdgeDetect  = 0
	smPulseGen    = 1
	smFireStrobe  = 2
	smUARTTrigger = 2
)

// Clock generator state machine on the clock PIO block.
const smClockGen = 0

// DefaultTriggerBaud is the line rate assumed by the UART byte trigger.
// The sampler runs at 8x this rate.
const DefaultTriggerBaud = 115200

var systemClockHz uint32 = 150_000_000

// SetSystemClockHz records the system clock rate used to derive state
// machine clock dividers. Target startup code calls this once.
func SetSystemClockHz(hz uint32) {
	systemClockHz = hz
}

// SystemClockHz returns the system clock rate in Hz. All public timing
// parameters are expressed in cycles of this clock.
func SystemClockHz() uint32 {
	return systemClockHz
}

// BusyWaitMicros is the platform busy-wait hook. Core code uses it only for
// microsecond-scale register settling, never to wait for a trigger.
var BusyWaitMicros = func(us uint32) {}

package core

// Hand-assembled PIO programs. Each listing is given in pioasm form next to
// its encoding. Jump targets are absolute, so every program is assembled for
// the fixed origin it is loaded at.
//
// Glitch block layout (32 words):
//
//	 0..16  pulse_generator   resident
//	17..18  fire_strobe       resident
//	19..    trigger variant   loaded per arm cycle (max 12 words)
//
// Clock block layout:
//
//	 0..19  clock_boost

// releaseIRQ is the inter-machine flag that releases the pulse generator.
// Whichever trigger detector is active (or the fire strobe) sets it; the
// pulse generator blocks on it after loading its parameters.
const releaseIRQ = 0

// triggerOrigin is the load address shared by all trigger detector variants.
// At most one variant is resident at a time.
const triggerOrigin = 19

// Instruction encodings, RP2 PIO ISA.

// jmp conditions
const (
	condAlways = 0
	condNotX   = 1
	condXDec   = 2
	condNotY   = 3
	condYDec   = 4
	condXNeY   = 5
	condPin    = 6
)

// mov/set destinations and mov/in sources
const (
	dstPins = 0
	dstX    = 1
	dstY    = 2
	dstISR  = 6

	srcPins = 0
	srcX    = 1
	srcY    = 2
	srcNull = 3
	srcISR  = 6
	srcOSR  = 7
)

// wait sources
const (
	waitPin = 1
	waitIRQ = 2
)

func insJmp(cond, addr uint16) uint16        { return 0x0000 | cond<<5 | addr }
func insWait(pol, src, index uint16) uint16  { return 0x2000 | pol<<7 | src<<5 | index }
func insIn(src, count uint16) uint16         { return 0x4000 | src<<5 | count&0x1f }
func insPullBlock() uint16                   { return 0x80a0 }
func insMov(dst, src uint16) uint16          { return 0xa000 | dst<<5 | src }
func insIrqWait(index uint16) uint16         { return 0xc020 | index }
func insSet(dst, value uint16) uint16        { return 0xe000 | dst<<5 | value }
func withDelay(ins, cycles uint16) uint16    { return ins | cycles<<8 }
func withSide(ins uint16) uint16             { return ins | 1<<12 }

// pulseGeneratorProgram emits the glitch pulse train. The TX FIFO is loaded
// with {pause, count-1, width, gap} before the machine is enabled; the
// program blocks on the release IRQ with the queue intact, then pulls its
// parameters and runs the whole sequence with no CPU involvement, parking
// with an empty FIFO. The queue must survive until release: software treats
// an empty queue as proof the sequence ran, so the pulls sit behind the
// wait, and the fixed pull latency is folded into the pause compensation.
//
// One side-set bit mirrors the SET pin onto the inverted output pad (the
// pad applies the polarity inversion).
//
//	.side_set 1
//	 0: wait 1 irq 0      side 0  ; release, FIFO still holds 4 words
//	 1: pull block        side 0  ; pause
//	 2: mov  x, osr       side 0
//	 3: pull block        side 0  ; count-1
//	 4: mov  y, osr       side 0
//	 5: pull block        side 0  ; width, parked in ISR
//	 6: mov  isr, osr     side 0
//	 7: pull block        side 0  ; gap, parked in OSR
//	 8: jmp  x-- 8        side 0  ; pause
//	 9: mov  x, isr       side 0  ; pulse loop
//	10: set  pins, 1      side 1
//	11: jmp  x-- 11       side 1  ; width
//	12: set  pins, 0      side 0
//	13: mov  x, osr       side 0
//	14: jmp  x-- 14       side 0  ; gap
//	15: jmp  y-- 9        side 0
//	16: jmp  16           side 0  ; park, FIFO stays empty
var pulseGeneratorProgram = &Program{
	Name:   "pulse_generator",
	Origin: 0,
	Instructions: []uint16{
		insWait(1, waitIRQ, releaseIRQ),
		insPullBlock(),
		insMov(dstX, srcOSR),
		insPullBlock(),
		insMov(dstY, srcOSR),
		insPullBlock(),
		insMov(dstISR, srcOSR),
		insPullBlock(),
		insJmp(condXDec, 8),
		insMov(dstX, srcISR),
		withSide(insSet(dstPins, 1)),
		withSide(insJmp(condXDec, 11)),
		insSet(dstPins, 0),
		insMov(dstX, srcOSR),
		insJmp(condXDec, 14),
		insJmp(condYDec, 9),
		insJmp(condAlways, 16),
	},
}

// fireStrobeProgram is the manual-fire path: drive FIRED high and set the
// release IRQ. It is enabled for about a microsecond and stopped again.
//
//	17: set pins, 1               ; FIRED
//	18: irq wait 0                ; release pulse generator
var fireStrobeProgram = &Program{
	Name:   "fire_strobe",
	Origin: 17,
	Instructions: []uint16{
		insSet(dstPins, 1),
		insIrqWait(releaseIRQ),
	},
}

// edgeDetectRisingProgram waits for a rising edge on the trigger input,
// debounces it with eight back-to-back samples and fires.
//
//	19: wait 0 pin 0              ; require idle low first
//	20: wait 1 pin 0              ; rising edge
//	21: set  x, 7
//	22: jmp  pin 24               ; still high, keep sampling
//	23: jmp  19                   ; bounced, re-arm
//	24: jmp  x-- 22
//	25: set  pins, 1              ; FIRED
//	26: irq  wait 0
var edgeDetectRisingProgram = &Program{
	Name:   "edge_detect_rising",
	Origin: triggerOrigin,
	Instructions: []uint16{
		insWait(0, waitPin, 0),
		insWait(1, waitPin, 0),
		insSet(dstX, 7),
		insJmp(condPin, 24),
		insJmp(condAlways, 19),
		insJmp(condXDec, 22),
		insSet(dstPins, 1),
		insIrqWait(releaseIRQ),
	},
}

// edgeDetectFallingProgram is the falling-edge variant.
//
//	19: wait 1 pin 0              ; require idle high first
//	20: wait 0 pin 0              ; falling edge
//	21: set  x, 7
//	22: jmp  pin 19               ; bounced back high, re-arm
//	23: jmp  x-- 22
//	24: set  pins, 1              ; FIRED
//	25: irq  wait 0
var edgeDetectFallingProgram = &Program{
	Name:   "edge_detect_falling",
	Origin: triggerOrigin,
	Instructions: []uint16{
		insWait(1, waitPin, 0),
		insWait(0, waitPin, 0),
		insSet(dstX, 7),
		insJmp(condPin, 19),
		insJmp(condXDec, 22),
		insSet(dstPins, 1),
		insIrqWait(releaseIRQ),
	},
}

// uartRxMatchProgram passively decodes the target UART RX line at 8x
// oversampling and fires when the received byte equals the trigger byte.
// The machine clock is divided to 8x the line baud rate; the TX FIFO is
// preloaded with the trigger byte in bits 31:24, matching where eight
// right-shifted IN bits land.
//
//	19: pull block                ; trigger byte << 24
//	20: mov  x, osr
//	21: mov  isr, null            ; clear accumulated bits
//	22: wait 1 pin 0              ; stop bit / idle
//	23: wait 0 pin 0              ; start bit edge
//	24: set  y, 7         [11]    ; align to middle of data bit 0
//	25: in   pins, 1      [6]     ; sample, 8 ticks per bit
//	26: jmp  y-- 25
//	27: mov  y, isr
//	28: jmp  x!=y 21              ; no match, resync on next byte
//	29: set  pins, 1              ; FIRED
//	30: irq  wait 0
var uartRxMatchProgram = &Program{
	Name:   "uart_rx_match",
	Origin: triggerOrigin,
	Instructions: []uint16{
		insPullBlock(),
		insMov(dstX, srcOSR),
		insMov(dstISR, srcNull),
		insWait(1, waitPin, 0),
		insWait(0, waitPin, 0),
		withDelay(insSet(dstY, 7), 11),
		withDelay(insIn(srcPins, 1), 6),
		insJmp(condYDec, 25),
		insMov(dstY, srcISR),
		insJmp(condXNeY, 21),
		insSet(dstPins, 1),
		insIrqWait(releaseIRQ),
	},
}

// clockBoostProgram is a free-running square-wave generator that doubles its
// frequency for a bounded number of cycles when FIRED goes high. Y holds the
// normal half-period and ISR the boosted one, both preloaded at enable time.
// The TX FIFO receives {boost count, normal half-period} during each arm
// transition, so a boost can only follow a fresh arm.
//
//	 0: mov  x, y                 ; normal half-period
//	 1: set  pins, 1
//	 2: jmp  x-- 2
//	 3: mov  x, y
//	 4: set  pins, 0
//	 5: jmp  x-- 5
//	 6: jmp  pin 8                ; FIRED high: boost
//	 7: jmp  0
//	 8: pull block                ; boost repeat count
//	 9: mov  x, osr
//	10: mov  y, isr               ; boosted half-period
//	11: set  pins, 1
//	12: jmp  y-- 12
//	13: mov  y, isr
//	14: set  pins, 0
//	15: jmp  y-- 15
//	16: jmp  x-- 10
//	17: pull block                ; restore normal half-period
//	18: mov  y, osr
//	19: jmp  0
var clockBoostProgram = &Program{
	Name:   "clock_boost",
	Origin: 0,
	Instructions: []uint16{
		insMov(dstX, srcY),
		insSet(dstPins, 1),
		insJmp(condXDec, 2),
		insMov(dstX, srcY),
		insSet(dstPins, 0),
		insJmp(condXDec, 5),
		insJmp(condPin, 8),
		insJmp(condAlways, 0),
		insPullBlock(),
		insMov(dstX, srcOSR),
		insMov(dstY, srcISR),
		insSet(dstPins, 1),
		insJmp(condYDec, 12),
		insMov(dstY, srcISR),
		insSet(dstPins, 0),
		insJmp(condYDec, 15),
		insJmp(condXDec, 10),
		insPullBlock(),
		insMov(dstY, srcOSR),
		insJmp(condAlways, 0),
	},
}

// triggerPrograms lists every variant that may occupy the trigger window.
var triggerPrograms = []*Program{
	edgeDetectRisingProgram,
	edgeDetectFallingProgram,
	uartRxMatchProgram,
}

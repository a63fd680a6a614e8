package glitch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang/glog"
)

// Range is an inclusive parameter sweep. Step 0 yields the single value From.
type Range struct {
	From uint32
	To   uint32
	Step uint32
}

func (r Range) values() []uint32 {
	if r.Step == 0 || r.To <= r.From {
		return []uint32{r.From}
	}
	var vs []uint32
	for v := r.From; v <= r.To; v += r.Step {
		vs = append(vs, v)
	}
	return vs
}

// ScanConfig describes a width x pause grid sweep. For every grid point the
// controller is parameterised and armed, then polled until the trigger fires
// or FireWait expires.
type ScanConfig struct {
	Pause Range
	Width Range

	// Fixed parameters applied once before the sweep.
	Gap   uint32
	Count uint32

	// FireWait bounds the wait for a hardware trigger per point.
	FireWait time.Duration
	// Poll is the status polling interval while armed.
	Poll time.Duration
}

// Point is one grid cell result.
type Point struct {
	Pause   uint32
	Width   uint32
	Fired   bool
	Elapsed time.Duration
}

// Scanner sweeps the glitch parameter grid against a live controller. The
// trigger source is configured by the caller beforehand; the scanner only
// varies timing and observes the controller's auto-disarm on fire.
type Scanner struct {
	Client *Client
	Config ScanConfig

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewScanner returns a scanner with defaulted wait intervals.
func NewScanner(c *Client, cfg ScanConfig) *Scanner {
	if cfg.FireWait == 0 {
		cfg.FireWait = 2 * time.Second
	}
	if cfg.Poll == 0 {
		cfg.Poll = 50 * time.Millisecond
	}
	return &Scanner{Client: c, Config: cfg, sleep: time.Sleep}
}

// Run executes the sweep in pause-major order and returns one point per grid
// cell. The controller is left disarmed.
func (s *Scanner) Run() ([]Point, error) {
	cfg := s.Config
	if cfg.Gap > 0 {
		if err := s.Client.SetGap(cfg.Gap); err != nil {
			return nil, err
		}
	}
	if cfg.Count > 0 {
		if err := s.Client.SetCount(cfg.Count); err != nil {
			return nil, err
		}
	}

	widths := cfg.Width.values()
	pauses := cfg.Pause.values()
	points := make([]Point, 0, len(widths)*len(pauses))

	for _, pause := range pauses {
		if err := s.Client.SetPause(pause); err != nil {
			return points, err
		}
		for _, width := range widths {
			if err := s.Client.SetWidth(width); err != nil {
				return points, err
			}
			pt, err := s.runPoint(pause, width)
			if err != nil {
				return points, err
			}
			glog.V(1).Infof("pause=%d width=%d fired=%v elapsed=%v",
				pt.Pause, pt.Width, pt.Fired, pt.Elapsed)
			points = append(points, pt)
		}
	}
	return points, nil
}

// runPoint arms once and waits for the fire. The controller disarms itself
// when the trigger lands, so Armed going low is the fire indication; a
// timeout disarms explicitly.
func (s *Scanner) runPoint(pause, width uint32) (Point, error) {
	pt := Point{Pause: pause, Width: width}

	if err := s.Client.Arm(); err != nil {
		return pt, fmt.Errorf("arm at pause=%d width=%d: %w", pause, width, err)
	}

	start := time.Now()
	var waited time.Duration
	for waited < s.Config.FireWait {
		s.sleep(s.Config.Poll)
		waited += s.Config.Poll

		st, err := s.Client.Status()
		if err != nil {
			return pt, err
		}
		if !st.Armed {
			pt.Fired = true
			pt.Elapsed = time.Since(start)
			return pt, nil
		}
	}

	pt.Elapsed = time.Since(start)
	if err := s.Client.Disarm(); err != nil {
		return pt, err
	}
	return pt, nil
}

// WriteCSV renders scan results with one row per grid point.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pause_cycles", "width_cycles", "fired", "elapsed_us"}); err != nil {
		return err
	}
	for _, pt := range points {
		rec := []string{
			strconv.FormatUint(uint64(pt.Pause), 10),
			strconv.FormatUint(uint64(pt.Width), 10),
			strconv.FormatBool(pt.Fired),
			strconv.FormatInt(pt.Elapsed.Microseconds(), 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

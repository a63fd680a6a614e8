// glitch-scan sweeps a width x pause parameter grid against a live
// controller and writes the results as CSV.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/profile"

	"glitcher/host/glitch"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "Serial device of the controller")
	out    = flag.String("out", "scan.csv", "CSV results path (- for stdout)")

	pauseFrom = flag.Uint("pause-from", 0, "Pause sweep start, cycles")
	pauseTo   = flag.Uint("pause-to", 0, "Pause sweep end (inclusive), cycles")
	pauseStep = flag.Uint("pause-step", 0, "Pause sweep step, cycles")
	widthFrom = flag.Uint("width-from", 50, "Width sweep start, cycles")
	widthTo   = flag.Uint("width-to", 50, "Width sweep end (inclusive), cycles")
	widthStep = flag.Uint("width-step", 0, "Width sweep step, cycles")

	gap      = flag.Uint("gap", 0, "Fixed gap, cycles (0 keeps controller value)")
	count    = flag.Uint("count", 0, "Fixed pulse count (0 keeps controller value)")
	fireWait = flag.Duration("fire-wait", 2*time.Second, "Per-point wait for the trigger")

	profileCPU = flag.Bool("profile", false, "Write a CPU profile for the scan run")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if *profileCPU {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	client, err := glitch.Dial(*device)
	if err != nil {
		glog.Exitf("connect %s: %v", *device, err)
	}
	defer client.Close()

	scanner := glitch.NewScanner(client, glitch.ScanConfig{
		Pause:    glitch.Range{From: uint32(*pauseFrom), To: uint32(*pauseTo), Step: uint32(*pauseStep)},
		Width:    glitch.Range{From: uint32(*widthFrom), To: uint32(*widthTo), Step: uint32(*widthStep)},
		Gap:      uint32(*gap),
		Count:    uint32(*count),
		FireWait: *fireWait,
	})

	points, err := scanner.Run()
	if err != nil {
		glog.Exitf("scan: %v", err)
	}
	glog.Infof("scan complete: %d points", len(points))

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			glog.Exitf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := glitch.WriteCSV(w, points); err != nil {
		glog.Exitf("write results: %v", err)
	}
}

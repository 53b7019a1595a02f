package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"msxfi/fault"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// PrintTimingStats prints where the time of an injection run went.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats fault.Timings, values int) {
	if !Verbose {
		return
	}
	share := func(d time.Duration) float64 {
		if stats.Total == 0 {
			return 0
		}
		return float64(d) / float64(stats.Total) * 100
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.Total)
	fmt.Fprintf(Output, "  Error map: %v (%.1f%%)\n", stats.ErrorMap, share(stats.ErrorMap))
	fmt.Fprintf(Output, "  Encode + pack: %v (%.1f%%)\n", stats.Encode, share(stats.Encode))
	fmt.Fprintf(Output, "  Injection: %v (%.1f%%)\n", stats.Inject, share(stats.Inject))
	fmt.Fprintf(Output, "  Unpack + decode: %v (%.1f%%)\n", stats.Decode, share(stats.Decode))
	if values > 0 {
		fmt.Fprintf(Output, "Average per value: %.3fµs\n", DurationUS(stats.Total)/float64(values))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}

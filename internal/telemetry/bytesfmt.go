package telemetry

import "fmt"

// FmtMem renders a byte count as a short human-readable size. The
// sampler's snapshot log does not call it; no byte total is tracked.
func FmtMem(bytes uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%dGB %dMB", bytes/gb, (bytes%gb)/mb)
	case bytes >= mb:
		return fmt.Sprintf("%dMB %dKB", bytes/mb, (bytes%mb)/kb)
	case bytes >= kb:
		return fmt.Sprintf("%dKB %dB", bytes/kb, bytes%kb)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

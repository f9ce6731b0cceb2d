package tui

import "time"

const (
	// Timeouts and Intervals
	TickInterval = 200 * time.Millisecond

	// Padding
	DefaultPaddingX = 1
	DefaultPaddingY = 0

	// Units
	Megabyte = 1024.0 * 1024.0

	// Speed samples kept for the graph
	SpeedHistoryLength = 120

	// Characters of the digest shown in the list
	DigestPrefixLength = 12
)

package utils

import (
	"github.com/dustin/go-humanize"
)

// ConvertBytesToHumanReadable formats a byte count with IEC units (KiB, MiB, ...).
func ConvertBytesToHumanReadable(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

package display

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a human-readable IEC size ("512 B", "1.5 KiB",
// "700 MiB"). Negative values keep their sign.
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 MiB").
func FormatBytesWithSign(bytes int64) string {
	sign := ""
	if bytes > 0 {
		sign = "+ "
	} else if bytes < 0 {
		sign = "- "
		bytes = -bytes
	}
	return sign + FormatBytes(bytes)
}

// FormatSeconds renders a duration as "1.23 seconds".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}

// FormatPercent renders a percentage with one decimal ("61.5%").
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatCount renders an integer with thousands separators ("12,340").
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

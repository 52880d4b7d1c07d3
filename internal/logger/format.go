package logger

import "strings"

// stripAnsiCodes drops CSI escape sequences (ESC [ ... final byte) so styled
// model and provider names land in the log file as plain text.
func stripAnsiCodes(s string) string {
	if strings.IndexByte(s, '\x1b') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\x1b' || i+1 >= len(s) || s[i+1] != '[' {
			b.WriteByte(s[i])
			continue
		}
		// parameters and intermediates run until a byte in 0x40-0x7e
		j := i + 2
		for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
			j++
		}
		i = j
	}
	return b.String()
}

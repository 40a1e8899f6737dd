package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage strips control characters from user-supplied text
// before it reaches the logs, keeping tabs and newlines.
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeDeviceName bounds and sanitizes a device name for logging.
// Device names come from request payloads and must not forge log lines.
func SanitizeDeviceName(name string) string {
	if len(name) > 50 {
		name = name[:50] + "..."
	}
	return SanitizeLogMessage(name)
}

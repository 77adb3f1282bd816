package upload

import "fmt"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in human-readable base-1024 form with
// two decimal places, e.g. "1.50 MB". Zero is "0 Bytes".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, sizeUnits[unit])
}

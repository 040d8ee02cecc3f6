// Package utils provides small shared helpers.
package utils

import (
	"fmt"
	"math"
)

// FormatBytes renders a byte count as a short human-readable string,
// rounded to two decimal places: 0 -> "0 B", 1024 -> "1 KB",
// 1048576 -> "1 MB".
func FormatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	sizes := []string{"B", "KB", "MB"}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(unit)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	if i < 0 {
		i = 0
	}

	value := math.Round(float64(bytes)/math.Pow(unit, float64(i))*100) / 100
	if value == math.Trunc(value) {
		return fmt.Sprintf("%d %s", int64(value), sizes[i])
	}
	return fmt.Sprintf("%g %s", value, sizes[i])
}

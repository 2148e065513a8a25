package pds4kit

import (
	"fmt"
	"strings"
)

const (
	bbyte = 1.0 << (10 * iota)
	kilobyte
	megabyte
	gigabyte
	terabyte
)

// Bytes returns a human-readable byte string of the form 10M, 12.5K, and so
// forth. The unit prefix is binary.
func Bytes(b int64) string {
	unit := ""
	value := float64(b)
	neg := b < 0
	if neg {
		value = -value
	}

	switch {
	case value >= terabyte:
		unit = "T"
		value = value / terabyte
	case value >= gigabyte:
		unit = "G"
		value = value / gigabyte
	case value >= megabyte:
		unit = "M"
		value = value / megabyte
	case value >= kilobyte:
		unit = "K"
		value = value / kilobyte
	case value >= bbyte:
		unit = "B"
	case value == 0:
		return "0"
	}

	stringValue := strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0")
	if neg {
		stringValue = "-" + stringValue
	}
	return stringValue + unit
}

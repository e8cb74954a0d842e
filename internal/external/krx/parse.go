package krx

import (
	"strconv"
	"strings"
)

// parseKRXNumber parses KRX number format (with commas) to int64
func parseKRXNumber(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// parseKRXFloat parses "1,234.56". ok is false for "-", empty or garbage.
func parseKRXFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

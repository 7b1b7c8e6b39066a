package fitcommon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ParseRatio accepts a number >= 1 or "inf" for limiting.
func ParseRatio(raw string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return 0, fmt.Errorf("empty ratio (use a number >= 1 or 'inf')")
	case "inf", "+inf", "limit":
		return math.Inf(1), nil
	}
	r, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%q (use a number >= 1 or 'inf')", raw)
	}
	if r < 1 || math.IsNaN(r) {
		return 0, fmt.Errorf("%g (must be >= 1 or 'inf')", r)
	}
	return r, nil
}

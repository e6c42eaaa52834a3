package replacement

import (
	"fmt"
	"math"
)

// StringToHash parses s as a base-16 number the way strtoull does: leading
// whitespace, an optional sign and an optional 0x prefix are accepted, and
// parsing stops at the first non-hex character. Input without any hex digits
// yields 0, and values that do not fit in 64 bits saturate to MaxUint64.
//
// The result is never an error. Empty and malformed strings all map to key 0,
// so unrelated records can collide there.
func StringToHash(s string) uint64 {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	negative := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		negative = s[i] == '-'
		i++
	}

	// A bare "0x" with no digits after it parses as the single digit 0.
	if i+2 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') && hexDigit(s[i+2]) >= 0 {
		i += 2
	}

	var value uint64
	overflow := false
	digits := 0
	for ; i < len(s); i++ {
		d := hexDigit(s[i])
		if d < 0 {
			break
		}
		digits++
		if value > (math.MaxUint64-uint64(d))/16 {
			overflow = true
			continue
		}
		value = value*16 + uint64(d)
	}

	switch {
	case digits == 0:
		return 0
	case overflow:
		return math.MaxUint64
	case negative:
		return -value
	}
	return value
}

// HashToString32 formats a 32-bit hash as 8 lowercase hex digits.
func HashToString32(hash uint32) string {
	return fmt.Sprintf("%08x", hash)
}

// HashToString64 formats a 64-bit hash as 16 lowercase hex digits, the key
// form the database expects.
func HashToString64(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

package digest

import "strings"

// naturalLess reports whether a sorts before b using case-insensitive,
// numeric-aware comparison: "news2" < "news10", "AI" < "tech".
func naturalLess(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			numA, restA := splitNumber(a)
			numB, restB := splitNumber(b)
			if numA != numB {
				return numberLess(numA, numB)
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitNumber(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// numberLess compares two digit runs by value without overflowing on long
// runs: fewer significant digits wins, equal lengths compare lexically.
func numberLess(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

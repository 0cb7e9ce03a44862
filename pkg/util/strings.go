package util

import "strconv"

// ParseIntDefault parses s as an int, falling back to def when s is empty or
// garbled. Query parameters ride through here so a bad value degrades to the
// documented default instead of erroring.
func ParseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

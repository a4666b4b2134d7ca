package exec

import (
	"strings"
)

// IsSafeArgument validates that a command argument is safe to use.
// This is less strict than IsSafeExecutableValue because arguments
// can legitimately contain more characters. However, it still checks for:
// 1. Empty values (rejected)
// 2. Null bytes (rejected)
// 3. Control characters like newlines (rejected)
// 4. Shell metacharacters ;&|`$<> (rejected)
//
// Note: Unlike executable values, arguments can start with - and contain quotes,
// as these are common in legitimate command arguments.
func IsSafeArgument(arg string) bool {
	if arg == "" {
		return false
	}

	// Check for null bytes
	if strings.Contains(arg, "\x00") {
		return false
	}

	// Check for control characters (newlines, carriage returns)
	if ControlChars.MatchString(arg) {
		return false
	}

	// Check for shell metacharacters
	if ShellMetachars.MatchString(arg) {
		return false
	}

	return true
}

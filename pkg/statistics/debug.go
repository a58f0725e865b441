package statistics

import "fmt"

// debugEnabled controls whether debug output is printed
var debugEnabled = false

// SetDebug enables or disables debug output for the statistics package
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// debugf prints formatted debug output when enabled
func debugf(format string, args ...interface{}) {
	if debugEnabled {
		fmt.Printf(format, args...)
	}
}

// debugln prints debug output when enabled
func debugln(args ...interface{}) {
	if debugEnabled {
		fmt.Println(args...)
	}
}

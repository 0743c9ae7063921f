package utils

import "log"

// Logf is the diagnostic logger used by every package in the module. It
// defaults to log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf is Logf with a WARNING prefix, used for recovered conditions.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}

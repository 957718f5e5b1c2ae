package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv is set for test binaries by the module's testing package.
const TestModeEnv = "ODYSSEY_TEST_MODE"

// 0 means unread.
var testMode atomic.Int32

const (
	testModeOff int32 = iota + 1
	testModeOn
)

// InTestMode reports whether binaries should skip side effects such as
// dialing brokers at startup.
func InTestMode() bool {
	switch testMode.Load() {
	case testModeOn:
		return true
	case testModeOff:
		return false
	}
	return RefreshTestMode()
}

// RefreshTestMode rereads the environment and returns the new value.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	on = on && err == nil
	if on {
		testMode.Store(testModeOn)
	} else {
		testMode.Store(testModeOff)
	}
	return on
}

// Package testing prepares the process for test binaries. Blank-import it
// from any package whose tests load configuration.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
	"time"
)

var once sync.Once

// Prepare turns on test mode, drops settings that would reach real
// infrastructure, and pins the local zone so ledger dates render the same
// on every machine.
func Prepare() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		for _, key := range []string{"KAFKA_BROKERS", "REDIS_PASSWORD", "VALUATION_METHOD", "LOG_FORMAT"} {
			_ = os.Unsetenv(key)
		}
		time.Local = time.UTC
	})
}

func init() {
	Prepare()
}

func TestMain(m *stdtesting.M) {
	Prepare()
	os.Exit(m.Run())
}

package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv makes the binaries exit before touching PostgreSQL or Redis.
const testModeEnv = "LEDGER_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether LEDGER_TEST_MODE is set to a true value.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode rereads LEDGER_TEST_MODE.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}

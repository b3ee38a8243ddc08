package app

import "os"

// InTestMode reports whether the binaries should skip runtime startup.
// Integration harnesses set ATLAS_TEST_MODE=1 to exercise the composition
// roots without touching Postgres or Redis.
func InTestMode() bool {
	return os.Getenv("ATLAS_TEST_MODE") == "1"
}

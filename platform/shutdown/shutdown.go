// Package shutdown coordinates graceful application shutdown. It keeps a
// process-wide shutdown flag that long-running loops can poll, and runs
// registered hooks when a termination signal arrives. The "SHUTDOWN"
// environment variable is set for child processes that check it.
package shutdown

import (
	"os"
	"sync"
)

var (
	isShutdown bool
	mu         sync.RWMutex
)

// CheckShutdown checks if we are in a shutdown state
func CheckShutdown() bool {
	mu.RLock()
	defer mu.RUnlock()
	return isShutdown
}

// setShutdown sets the shutdown flag
func setShutdown() {
	mu.Lock()
	isShutdown = true
	mu.Unlock()
	_ = os.Setenv("SHUTDOWN", "true")
}

// Package log wraps go.uber.org/zap the way erigon-lib/log wraps its own
// backend: a single process-wide root logger, cheap child loggers carrying
// component fields, no other ambient state.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.Mutex
	root *zap.SugaredLogger
)

// Root returns the process-wide logger, building it lazily on first use.
func Root() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		root = l.Sugar()
	}
	return root
}

// New returns a child logger tagged with the given component name.
func New(component string) *zap.SugaredLogger {
	return Root().With("component", component)
}

// SetForTesting installs a no-op logger, used by tests that don't want
// production JSON logging noise on stdout.
func SetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	root = zap.NewNop().Sugar()
}

// File: facade/facade.go
// Process-wide facade over a single lockedalloc allocator.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The facade lazily builds one allocator the first time it is used, taking
// its configuration from LOCKEDALLOC_* environment variables on top of any
// options passed to Configure. It also owns a control.Controller so the
// allocator's statistics and the log level are reachable from one place.

package facade

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/momentics/lockedalloc/allocator"
	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/control"
)

var (
	once    sync.Once
	mu      sync.Mutex
	opts    []allocator.Option
	inst    *allocator.Allocator
	ctrl    *control.Controller
	initErr error
)

// ErrConfigured is returned by Configure after the facade was initialized.
var ErrConfigured = errors.New("facade: allocator already initialized")

// Configure sets options applied when the allocator is built. It must be
// called before the first Alloc.
func Configure(o ...allocator.Option) error {
	mu.Lock()
	defer mu.Unlock()
	if inst != nil || initErr != nil {
		return ErrConfigured
	}
	opts = append(opts, o...)
	return nil
}

func initialize() {
	mu.Lock()
	defer mu.Unlock()

	cfg := allocator.DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	if os.Getenv(allocator.EnvDebug) == "1" {
		level.SetLevel(zap.DebugLevel)
	}
	if cfg.Logger == nil {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = level
		l, err := zcfg.Build()
		if err != nil {
			initErr = errors.Wrap(err, "facade: build logger")
			return
		}
		cfg.Logger = l.Named("lockedalloc")
	}

	cfg, err := allocator.ConfigFromEnv(cfg)
	if err != nil {
		initErr = errors.Wrap(err, "facade: environment")
		return
	}
	a, err := allocator.NewWithConfig(cfg)
	if err != nil {
		initErr = errors.Wrap(err, "facade: new allocator")
		return
	}
	inst = a
	ctrl = control.NewController(a)
	ctrl.BindLogLevel(level, cfg.Logger)
	ctrl.SetConfig(map[string]any{
		"allocator.pool_step":      cfg.PoolStep,
		"allocator.require_locked": cfg.RequireLocked,
		"allocator.quota_ceiling":  cfg.QuotaCeiling,
	})
}

// Default returns the process-wide allocator, building it on first use.
func Default() (*allocator.Allocator, error) {
	once.Do(initialize)
	return inst, initErr
}

// Control returns the controller bound to the process-wide allocator.
func Control() (*control.Controller, error) {
	once.Do(initialize)
	return ctrl, initErr
}

// Alloc returns a zeroed locked buffer of size bytes.
func Alloc(size int) (*allocator.Buffer, error) {
	a, err := Default()
	if err != nil {
		return nil, err
	}
	return a.Allocate(size)
}

// AllocPinned returns a buffer whose liveness is governed by pin.
func AllocPinned(size int, pin *api.ExternalPin) (*allocator.Buffer, error) {
	a, err := Default()
	if err != nil {
		return nil, err
	}
	return a.AllocatePinned(size, pin)
}

// Free releases b. It is a no-op for nil or already released buffers.
func Free(b *allocator.Buffer) {
	if b == nil {
		return
	}
	b.Free()
}

// Sweep reclaims pinned buffers whose pin was released.
func Sweep() int {
	a, err := Default()
	if err != nil {
		return 0
	}
	return a.Sweep()
}

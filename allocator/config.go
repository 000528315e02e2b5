// File: allocator/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package allocator

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/osmem"
	"github.com/momentics/lockedalloc/pool"
)

// DefaultPoolStep is how many pools a growth step adds.
const DefaultPoolStep = 4

// Config holds allocator parameters. They are fixed for the lifetime of an
// Allocator.
type Config struct {
	PoolStep          int          // pools added per growth
	PoolSize          int          // standard arena size, 0 = page-aligned 512 KiB
	HeaderBatch       int          // header table growth step
	MapRetries        int          // arena mapping attempts before ErrArenaMap
	RotationThreshold int          // scan steps between order rotations, 0 = 2*PoolStep
	RequireLocked     bool         // refuse buffers from arenas that could not be locked
	QuotaFloor        uint64       // smallest lock limit requested from the OS
	QuotaCeiling      uint64       // most bytes the process tries to lock
	Platform          api.Platform // OS services, default osmem
	Logger            *zap.Logger  // default no-op
}

// DefaultConfig returns defaults suitable for key material workloads.
func DefaultConfig() Config {
	return Config{
		PoolStep:     DefaultPoolStep,
		HeaderBatch:  pool.DefaultHeaderBatch,
		MapRetries:   pool.DefaultMapRetries,
		QuotaFloor:   pool.DefaultQuotaFloor,
		QuotaCeiling: pool.DefaultQuotaCeiling,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithPoolStep sets the number of pools added per growth.
func WithPoolStep(n int) Option { return func(c *Config) { c.PoolStep = n } }

// WithPoolSize overrides the standard arena size.
func WithPoolSize(n int) Option { return func(c *Config) { c.PoolSize = n } }

// WithHeaderBatch sets the header table growth step.
func WithHeaderBatch(n int) Option { return func(c *Config) { c.HeaderBatch = n } }

// WithMapRetries bounds arena mapping attempts.
func WithMapRetries(n int) Option { return func(c *Config) { c.MapRetries = n } }

// WithRotationThreshold sets how many scan steps pass between rotations.
func WithRotationThreshold(n int) Option { return func(c *Config) { c.RotationThreshold = n } }

// WithRequireLocked makes Allocate fail with api.ErrNotLocked rather than
// hand out memory that may be swapped.
func WithRequireLocked() Option { return func(c *Config) { c.RequireLocked = true } }

// WithQuotaLimits sets the lockable-memory floor and ceiling.
func WithQuotaLimits(floor, ceiling uint64) Option {
	return func(c *Config) {
		c.QuotaFloor = floor
		c.QuotaCeiling = ceiling
	}
}

// WithPlatform replaces the OS layer.
func WithPlatform(p api.Platform) Option { return func(c *Config) { c.Platform = p } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

// Environment variables read by ConfigFromEnv.
const (
	EnvPoolStep      = "LOCKEDALLOC_POOL_STEP"
	EnvPoolSize      = "LOCKEDALLOC_POOL_SIZE"
	EnvRequireLocked = "LOCKEDALLOC_REQUIRE_LOCKED"
	EnvQuotaCeiling  = "LOCKEDALLOC_QUOTA_CEILING"
	EnvDebug         = "LOCKEDALLOC_DEBUG"
)

// ConfigFromEnv applies LOCKEDALLOC_* overrides on top of base.
func ConfigFromEnv(base Config) (Config, error) {
	c := base
	if v, ok := os.LookupEnv(EnvPoolStep); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, errors.Wrapf(err, "%s", EnvPoolStep)
		}
		c.PoolStep = n
	}
	if v, ok := os.LookupEnv(EnvPoolSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, errors.Wrapf(err, "%s", EnvPoolSize)
		}
		c.PoolSize = n
	}
	if v, ok := os.LookupEnv(EnvRequireLocked); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return base, errors.Wrapf(err, "%s", EnvRequireLocked)
		}
		c.RequireLocked = b
	}
	if v, ok := os.LookupEnv(EnvQuotaCeiling); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return base, errors.Wrapf(err, "%s", EnvQuotaCeiling)
		}
		c.QuotaCeiling = n
	}
	if os.Getenv(EnvDebug) == "1" && c.Logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return base, errors.Wrap(err, "debug logger")
		}
		c.Logger = l
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.PoolStep <= 0 {
		return errors.Newf("allocator: pool step must be positive, got %d", c.PoolStep)
	}
	if c.PoolSize < 0 {
		return errors.Newf("allocator: pool size must not be negative, got %d", c.PoolSize)
	}
	if c.QuotaCeiling != 0 && c.QuotaFloor > c.QuotaCeiling {
		return errors.Newf("allocator: quota floor %d above ceiling %d", c.QuotaFloor, c.QuotaCeiling)
	}
	if c.RotationThreshold <= 0 {
		c.RotationThreshold = 2 * c.PoolStep
	}
	if c.Platform == nil {
		c.Platform = osmem.New()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

func (c *Config) poolConfig() pool.Config {
	return pool.Config{
		PoolSize:      c.PoolSize,
		HeaderBatch:   c.HeaderBatch,
		MapRetries:    c.MapRetries,
		RequireLocked: c.RequireLocked,
	}
}

// control/controller.go
// Author: momentics <momentics@gmail.com>
//
// Controller bundles settings, metrics and debug probes behind one handle.

package control

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KeyLogLevel is the setting that retunes a bound log level.
const KeyLogLevel = "log.level"

// Controller combines a ConfigStore, a MetricsRegistry and DebugProbes.
type Controller struct {
	config  *ConfigStore
	metrics *MetricsRegistry
	debug   *DebugProbes
	source  StatsSource
}

// NewController returns a controller with platform probes registered. When
// src is not nil its statistics are published by Stats and its pools are
// exposed as probes.
func NewController(src StatsSource) *Controller {
	c := &Controller{
		config:  NewConfigStore(),
		metrics: NewMetricsRegistry(),
		debug:   NewDebugProbes(),
		source:  src,
	}
	RegisterPlatformProbes(c.debug)
	if src != nil {
		RegisterAllocatorProbes(c.debug, src)
	}
	return c
}

func (c *Controller) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *Controller) SetConfig(cfg map[string]any) {
	c.config.SetConfig(cfg)
}

// Stats refreshes allocator metrics and returns them merged with probe
// output under "debug.*".
func (c *Controller) Stats() map[string]any {
	if c.source != nil {
		PublishAllocator(c.metrics, c.source)
	}
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *Controller) OnReload(fn func(changed map[string]any)) {
	c.config.OnReload(fn)
}

func (c *Controller) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *Controller) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// BindLogLevel makes the "log.level" setting retune level. Values that do
// not parse are logged and ignored.
func (c *Controller) BindLogLevel(level zap.AtomicLevel, log *zap.Logger) {
	c.config.SetConfig(map[string]any{KeyLogLevel: level.String()})
	c.config.OnReload(func(changed map[string]any) {
		v, ok := changed[KeyLogLevel]
		if !ok {
			return
		}
		s, _ := v.(string)
		lvl, err := zapcore.ParseLevel(s)
		if err != nil {
			log.Warn("ignoring log level", zap.Any("value", v), zap.Error(err))
			return
		}
		level.SetLevel(lvl)
	})
}

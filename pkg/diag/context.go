package diag

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Context is the explicit diagnostic state handed to every component. It
// owns the bus adapter for the duration of a diagnostic pass; callers must
// not run two operations on the same Context concurrently.
type Context struct {
	Adapter bus.Adapter
	Config  *Config
	Log     logrus.FieldLogger

	// Sleep implements the settle and confirmation delays. Tests replace it
	// with a no-op.
	Sleep func(time.Duration)
}

// NewContext returns a Context for the adapter. A nil cfg selects
// DefaultConfig.
func NewContext(a bus.Adapter, cfg *Config) *Context {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Context{
		Adapter: a,
		Config:  cfg,
		Log:     logrus.StandardLogger(),
		Sleep:   time.Sleep,
	}
}

func (dc *Context) wait(d time.Duration) {
	if d <= 0 || dc.Sleep == nil {
		return
	}
	dc.Sleep(d)
}

func (dc *Context) settle() { dc.wait(dc.Config.SettleDelay) }

func (dc *Context) logger() logrus.FieldLogger {
	if dc.Log == nil {
		return logrus.StandardLogger()
	}
	return dc.Log
}

// sample counts how many of ConfirmLoops probes return true.
func (dc *Context) sample(probe func() bool) int {
	hits := 0
	for i := 0; i < dc.Config.ConfirmLoops; i++ {
		dc.wait(dc.Config.ConfirmDelay)
		if probe() {
			hits++
		}
	}
	return hits
}

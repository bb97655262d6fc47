package dessim

import (
	"github.com/joeycumines/logiface"
)

type (
	// Option models a configuration option for NewSystem; see the package
	// level functions returning values of this type.
	Option interface {
		apply(c *systemConfig)
	}

	optionFunc func(c *systemConfig)

	systemConfig struct {
		seed     *uint64
		logger   *logiface.Logger[logiface.Event]
		eventLog *EventLog
	}
)

var (
	// compile time assertions

	_ Option = optionFunc(nil)
)

func (x optionFunc) apply(c *systemConfig) { x(c) }

// WithSeed fixes the PRNG seed. Without this option the seed is drawn from a
// process-wide source at construction, and echoed through the logger so the
// run can be reproduced.
func WithSeed(seed uint64) Option {
	return optionFunc(func(c *systemConfig) {
		c.seed = &seed
	})
}

// WithLogger configures structured logging for the system and everything it
// composes. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(c *systemConfig) {
		c.logger = logger
	})
}

// WithEventLog configures the visualizer event log. A nil event log (the
// default) discards everything.
func WithEventLog(eventLog *EventLog) Option {
	return optionFunc(func(c *systemConfig) {
		c.eventLog = eventLog
	})
}

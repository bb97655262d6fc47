// Package dessimtest provides a scenario harness for simulator-based test
// suites: named scenario registration, pass/fail accounting, event-log
// control lines, and ready-made logiface loggers for human and machine
// consumption.
package dessimtest

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	dessim "github.com/joeycumines/go-dessim"
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/rs/zerolog"
)

type (
	// TestFunc is one scenario; a nil error is a pass.
	TestFunc func() error

	// Suite runs named scenarios in registration order, bracketing each
	// with TEST_BEGIN / TEST_END control lines in the event log when one
	// is configured.
	Suite struct {
		tests []suiteTest
		log   *logiface.Logger[logiface.Event]
		elog  *dessim.EventLog
		runID string
	}

	suiteTest struct {
		name string
		fn   TestFunc
	}

	// Option models a configuration option for NewSuite.
	Option interface {
		apply(s *Suite)
	}

	optionFunc func(s *Suite)
)

var (
	// compile time assertions

	_ Option = optionFunc(nil)
)

func (x optionFunc) apply(s *Suite) { x(s) }

// WithLogger configures suite logging.
func WithLogger(log *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(s *Suite) {
		s.log = log
	})
}

// WithEventLog configures the event log receiving TEST_BEGIN / TEST_END
// control lines.
func WithEventLog(elog *dessim.EventLog) Option {
	return optionFunc(func(s *Suite) {
		s.elog = elog
	})
}

// NewSuite builds an empty suite with a fresh run id.
func NewSuite(options ...Option) *Suite {
	s := &Suite{runID: uuid.NewString()}
	for _, o := range options {
		o.apply(s)
	}
	return s
}

// RunID returns the unique identifier of this suite run.
func (x *Suite) RunID() string {
	return x.runID
}

// Add registers a scenario. Names must be unique; duplicates panic.
func (x *Suite) Add(name string, fn TestFunc) {
	for _, tc := range x.tests {
		if tc.name == name {
			panic(fmt.Errorf(`dessimtest: duplicate test: %q`, name))
		}
	}
	x.tests = append(x.tests, suiteTest{name: name, fn: fn})
}

// Run executes every registered scenario and returns the pass/fail tally.
func (x *Suite) Run() (passed, failed int) {
	for _, tc := range x.tests {
		if x.runOne(tc) == nil {
			passed++
		} else {
			failed++
		}
	}
	x.log.Info().
		Str(`run`, x.runID).
		Int(`passed`, passed).
		Int(`failed`, failed).
		Log(`suite finished`)
	return passed, failed
}

// RunSingle executes the named scenario, returning its error. Unknown names
// are a programmer error and panic.
func (x *Suite) RunSingle(name string) error {
	for _, tc := range x.tests {
		if tc.name == name {
			return x.runOne(tc)
		}
	}
	panic(fmt.Errorf(`dessimtest: unknown test: %q`, name))
}

func (x *Suite) runOne(tc suiteTest) error {
	x.log.Info().Str(`run`, x.runID).Str(`test`, tc.name).Log(`test started`)
	x.elog.SetTest(tc.name)
	err := tc.fn()
	if err != nil {
		x.elog.SetTestResult(`FAILED`)
		x.log.Err().Str(`test`, tc.name).Err(err).Log(`test failed`)
		return err
	}
	x.elog.SetTestResult(`PASSED`)
	x.log.Info().Str(`test`, tc.name).Log(`test passed`)
	return nil
}

// ConsoleLogger returns a trace-level logiface logger rendering colored,
// human-readable output via zerolog's console writer: the counterpart of
// the simulator's stdout trace.
func ConsoleLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w})
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

// JSONLogger returns a trace-level logiface logger emitting one JSON object
// per line via stumpy, suitable for machine consumption.
func JSONLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

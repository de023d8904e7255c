// Package shared holds helpers used by tests across the MKBD packages.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on the warnings and errors a component logs:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := NewSomething(logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "sheet not found")
package shared

// Package logging provides structured logging for roundtable runs.
//
// This package wraps Go's log/slog to write JSON-formatted logs into each
// run's directory so a finished run can be inspected after the fact with
// the logs command.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, agent role, iteration)
//   - Size-based log rotation with optional gzip compression
//   - Aggregation, filtering, and export to JSON, text, or CSV
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".roundtable/runs/<run-id>", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithRun(runID)
//	runLog.WithIteration(2).WithAgent("qa").Info("agent completed",
//	    "files_written", 3,
//	    "signaled_done", false,
//	)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"agent completed","run_id":"...","iteration":2,"agent":"qa","files_written":3,"signaled_done":false}
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation(runDir, "DEBUG", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are named debug.log.1, debug.log.2, and so on, where .1 is
// the most recent. With compression enabled they become debug.log.1.gz.
//
// # Reading Logs Back
//
//	entries, err := logging.AggregateLogs(runDir)
//	errorsOnly := logging.FilterLogs(entries, logging.LogFilter{Level: "ERROR"})
//	err = logging.WriteLogEntries(os.Stdout, errorsOnly, "text")
//
// A [NopLogger] discards everything and is the default for library callers
// that do not configure logging.
package logging

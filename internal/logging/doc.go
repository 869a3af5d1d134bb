// Package logging provides structured logging for bufferlab runs.
//
// It wraps Go's log/slog to write JSON lines carrying persistent context
// (component, phase, pool, worker), so the interleaving of a run can be
// reconstructed afterwards.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/bufferlab", "DEBUG")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithComponent("race").WithPhase("unlocked")
//	log.Info("phase completed", "final_value", -1204, "expected", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"phase completed","component":"race","phase":"unlocked","final_value":-1204,"expected":0}
//
// An empty directory logs to stderr. [NewWriterLogger] logs to any
// io.Writer and [NopLogger] discards everything, which is what library
// code uses when no logger is supplied.
//
// # Log Rotation
//
// Debug-level runs log every worker start and stop. [NewLoggerWithRotation]
// caps the file size:
//
//	logger, err := logging.NewLoggerWithRotation(dir, "DEBUG", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are bufferlab.log.1 (newest) through bufferlab.log.N, with a
// .gz suffix when compressed.
//
// # Reading Logs Back
//
// [AggregateLogs] reads the active file and every backup, [FilterLogs]
// narrows the entries and [ExportLogEntries] writes them as json, text or
// csv:
//
//	entries, err := logging.AggregateLogs(dir)
//	if err != nil {
//	    return err
//	}
//	lost := logging.FilterLogs(entries, logging.LogFilter{
//	    Component: "race",
//	    Phase:     "unlocked",
//	})
//	_ = logging.ExportLogEntries(os.Stdout, lost, "text")
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use. Child loggers
// created with the With* methods share the parent's writer.
package logging

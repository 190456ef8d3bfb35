// Package logging provides structured logging for eks-nvidia-tools.
//
// It wraps the standard library slog package with tool-wide defaults:
// JSON output to stderr, module/version context on every record, and
// LOG_LEVEL environment-based level configuration. Debug level adds
// source location to each record.
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("eksnv", version)
//
//	    slog.Info("resolving releases", "k8s", "1.32")
//	    slog.Error("fetch failed", "error", err)
//	}
//
// Setting an explicit level, e.g. from a --log-level flag:
//
//	logging.SetDefaultStructuredLoggerWithLevel("eksnv", version, "debug")
package logging

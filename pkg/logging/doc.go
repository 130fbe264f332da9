// Package logging provides structured, subsystem-tagged logging for kubeop.
//
// The package is a thin layer over Go's slog. Every entry carries a
// "subsystem" attribute; operators additionally attach their name and the
// identity of the item being reconciled through a Logger created with With.
//
// # Initialization
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)  // text output
//	logging.InitForJSON(logging.LevelInfo, os.Stderr) // JSON output for clusters
//
// Messages logged before initialization are discarded.
//
// # Package-level helpers
//
//	logging.Info("Bootstrap", "Starting %d operators", n)
//	logging.Error("Config", err, "Failed to load %s", path)
//
// # Subsystem loggers
//
//	log := logging.With("Operator", "operator", "worker")
//	log.With("namespace", ns, "name", name).Info("Created child")
//
// # Controller-Runtime Integration
//
// Init also installs the same slog handler as controller-runtime's logr
// sink, so client and cache internals log through kubeop's output.
package logging

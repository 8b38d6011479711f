// Package logging provides a process-wide structured logger for sitekernel.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. Engine
// components obtain their loggers through this package so that level and
// destination are controlled from one place (see pkg/config).
//
// # Initialisation
//
// Call Init (or InitDefault) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// If GetLogger is called before Init, a default stderr logger is installed.
//
// # Context helpers
//
// Helpers return child loggers pre-populated with structured fields:
//
//	log := logging.WithTxn(txnID)          // adds txn_id
//	log := logging.WithFragment(fragID)    // adds fragment_id
//	log := logging.WithSite(site, part)    // adds site_id, partition_id
package logging

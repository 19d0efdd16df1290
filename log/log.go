// Package log centralizes the per-subsystem loggers used across the
// watcher agent, following the same backend-plus-named-subsystem
// convention lnd.go and breacharbiter.go use (there: backendLog/ltndLog/
// brarLog; here: one backend, one logger per package).
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// subsystem tags, one per package that logs.
const (
	TagConfig  = "CFG"
	TagStore   = "STOR"
	TagWatcher = "WTCH"
	TagSync    = "HSYN"
	TagPoll    = "CNWC"
	TagHandler = "UPHD"
	TagIndexer = "INDX"
)

var (
	backendLog = btclog.NewBackend(logWriter{})

	// Disabled is btclog's no-op logger, re-exported for callers that
	// want to silence a subsystem through UseLogger.
	Disabled = btclog.Disabled

	subsystemsMu sync.Mutex
	subsystems   = make(map[string]btclog.Logger)
)

// logWriter multiplexes log output to stdout; InitLogRotator layers a
// rotating file on top by replacing this writer's destination.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// NewSubsystem returns a logger tagged with subsystem, wired to the
// shared backend, and registers it under that tag so UseLogger/SetLevels
// can reach it later.
func NewSubsystem(subsystem string) btclog.Logger {
	logger := backendLog.Logger(subsystem)

	subsystemsMu.Lock()
	subsystems[subsystem] = logger
	subsystemsMu.Unlock()

	return logger
}

// UseLogger replaces the logger registered under subsystem, so later
// SetLevels calls reach logger instead. Loggers already handed out by
// NewSubsystem (each package's own logger var) are not replaced and keep
// logging through the shared backend.
func UseLogger(subsystem string, logger btclog.Logger) {
	subsystemsMu.Lock()
	defer subsystemsMu.Unlock()
	subsystems[subsystem] = logger
}

// SetLevels applies levelName to every subsystem logger registered so
// far, the same blanket debuglevel config value lnd.go applies across all
// of its subsystem loggers at start-up.
func SetLevels(levelName string) error {
	level, ok := btclog.LevelFromString(levelName)
	if !ok {
		return fmt.Errorf("log: unknown level %q", levelName)
	}

	subsystemsMu.Lock()
	defer subsystemsMu.Unlock()
	for _, logger := range subsystems {
		logger.SetLevel(level)
	}
	return nil
}

// logRotator, once initialized, is closed on shutdown by callers of
// InitLogRotator.
var logRotator *rotator.Rotator

// InitLogRotator creates a rotating log file at logFile, in addition to
// the existing stdout writer, mirroring lnd's own initLogRotator.
func InitLogRotator(logFile string, maxLogFileSize int64, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	r, err := rotator.New(logFile, maxLogFileSize*1024, false, maxLogFiles)
	if err != nil {
		return err
	}
	logRotator = r
	return nil
}

// Flush closes the log rotator, if one was initialized.
func Flush() {
	if logRotator != nil {
		logRotator.Close()
	}
}

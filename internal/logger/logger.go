// Package logger builds the process-wide arbor logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	global arbor.ILogger
	mu     sync.RWMutex
)

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		OutputType: models.OutputFormatLogfmt,
	}
}

// Get returns the global logger, creating a console logger on first use.
func Get() arbor.ILogger {
	mu.RLock()
	if global != nil {
		defer mu.RUnlock()
		return global
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return global
}

// Init configures the global logger with a console writer, an optional file
// writer and the given level.
func Init(level, file string) arbor.ILogger {
	mu.Lock()
	defer mu.Unlock()

	l := arbor.NewLogger().WithConsoleWriter(consoleWriter())
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
		} else {
			l = l.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   file,
				TimeFormat: "15:04:05",
				MaxSize:    100 * 1024 * 1024,
				MaxBackups: 3,
				OutputType: models.OutputFormatLogfmt,
			})
		}
	}
	l = l.WithLevelFromString(level)
	global = l
	return l
}

// ForRun returns a logger whose entries carry the run's correlation id.
func ForRun(base arbor.ILogger, runID string) arbor.ILogger {
	return base.WithCorrelationId(runID)
}

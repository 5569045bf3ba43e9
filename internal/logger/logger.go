// Package logger provides module-tagged structured logging backed by zap.
// Until Initialize is called every write is discarded.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where and how much is logged
type Options struct {
	Dir      string // log directory; empty disables the file sink
	Level    string // debug, info, warn, error
	Console  bool   // also write human-readable lines to stderr
	KeepDays int    // daily files older than this are removed; 0 keeps everything
}

var (
	logMutex  sync.Mutex
	log       = zap.NewNop()
	logFile   *os.File
	logPath   string
	crashPath string
)

// Initialize sets up the logging system
func Initialize(opts Options) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var cores []zapcore.Core

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		if opts.KeepDays > 0 {
			cleanupOldLogs(opts.Dir, opts.KeepDays)
		}

		timestamp := time.Now().Format("2006-01-02")
		logPath = filepath.Join(opts.Dir, fmt.Sprintf("caat_%s.log", timestamp))
		crashPath = filepath.Join(opts.Dir, fmt.Sprintf("caat_crash_%s.log", timestamp))

		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		logFile = f

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	if opts.Console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		log = zap.NewNop()
		return nil
	}
	log = zap.New(zapcore.NewTee(cores...))

	log.Debug("logger initialized",
		zap.String("module", "Application"),
		zap.String("log_file", logPath),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
	)
	return nil
}

// SetLogger replaces the backing logger, e.g. with an observer in tests
func SetLogger(l *zap.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// L returns the backing zap logger
func L() *zap.Logger {
	logMutex.Lock()
	defer logMutex.Unlock()
	return log
}

// Close flushes and closes the log file
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	_ = log.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	log = zap.NewNop()
}

// WriteInfo writes an info message to the log
func WriteInfo(module, message string, fields ...zap.Field) {
	L().Info(message, withModule(module, fields)...)
}

// WriteError writes an error message to the log
func WriteError(module, message string, fields ...zap.Field) {
	L().Error(message, withModule(module, fields)...)
}

// WriteWarning writes a warning message to the log
func WriteWarning(module, message string, fields ...zap.Field) {
	L().Warn(message, withModule(module, fields)...)
}

// WriteDebug writes a debug message to the log
func WriteDebug(module, message string, fields ...zap.Field) {
	L().Debug(message, withModule(module, fields)...)
}

func withModule(module string, fields []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("module", module))
	return append(out, fields...)
}

// WriteCrash writes crash information to the main log and the crash file
func WriteCrash(module string, err interface{}, stackTrace []byte) {
	WriteError(module, "crash", zap.Any("panic", err), zap.ByteString("stack", stackTrace))

	logMutex.Lock()
	defer logMutex.Unlock()
	if crashPath == "" {
		return
	}

	crashFile, err2 := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err2 != nil {
		return
	}
	defer crashFile.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(crashFile, "\n========================================\n")
	fmt.Fprintf(crashFile, "[%s] CRASH REPORT\n", timestamp)
	fmt.Fprintf(crashFile, "Module: %s\n", module)
	fmt.Fprintf(crashFile, "Error: %v\n", err)
	fmt.Fprintf(crashFile, "Stack Trace:\n%s\n", stackTrace)
	fmt.Fprintf(crashFile, "========================================\n")
}

// RecoverPanic recovers from a panic, logs it and exits with status 2.
// Use it deferred at the top of main.
func RecoverPanic(module string) {
	if r := recover(); r != nil {
		stackBuf := make([]byte, 8192)
		stackSize := runtime.Stack(stackBuf, false)
		WriteCrash(module, r, stackBuf[:stackSize])
		fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
		Close()
		os.Exit(2)
	}
}

// GetLogPath returns the current log file path
func GetLogPath() string {
	logMutex.Lock()
	defer logMutex.Unlock()
	return logPath
}

// cleanupOldLogs removes log files older than the specified number of days
func cleanupOldLogs(logsDir string, keepDays int) {
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(logsDir, entry.Name()))
		}
	}
}

// isLogFile checks if a filename looks like one of our log files
func isLogFile(name string) bool {
	return strings.HasPrefix(name, "caat_") && strings.HasSuffix(name, ".log")
}

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for trading activities
type Logger struct {
	session string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a new file logger for the named trading session
func NewLogger(session string) (*Logger, error) {
	// Create log directory if it doesn't exist
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log filename with timestamp
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", session, timestamp)
	logPath := filepath.Join(logDir, filename)

	// Open or create log file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create logger with timestamp and no prefix (we'll add our own formatting)
	logger := log.New(file, "", 0)

	l := &Logger{
		session: session,
		logFile: file,
		logger:  logger,
		logDir:  logDir,
	}

	// Write session start header
	l.writeSessionHeader()

	return l, nil
}

// NewNop creates a logger that discards everything. Used in tests and
// when file logging is disabled.
func NewNop() *Logger {
	return &Logger{
		session: "nop",
		logger:  log.New(io.Discard, "", 0),
	}
}

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 TRADING SESSION STARTED
================================================================================
Session: %s
Started: %s
Log File: %s_%s.log
================================================================================
`, l.session, time.Now().Format("2006-01-02 15:04:05"),
		l.session, time.Now().Format("2006-01-02"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logEntry := fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)

	l.logger.Println(logEntry)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogOrderExecution logs order execution details
func (l *Logger) LogOrderExecution(symbol, side, ticket string, quantity, price, allocated float64, step int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s %s EXECUTED ====================
✅ Ticket: %s
📦 Quantity: %.2f %s
💰 Price: $%.5f
💵 Allocated: $%.2f
🔄 Allocation Step: %d
=============================================================`,
		timestamp, side, symbol, ticket, quantity, symbol, price, allocated, step)

	l.logger.Println(tradeLog)
}

// LogOrderFailure logs a failed order submission with its cause
func (l *Logger) LogOrderFailure(symbol, side string, quantity float64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	failLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s %s FAILED ====================
❌ Quantity: %.2f
⚠️  Cause: %v
=============================================================`,
		timestamp, side, symbol, quantity, err)

	l.logger.Println(failLog)
}

// LogMarketClosed logs a market-closed skip with the next open time
func (l *Logger) LogMarketClosed(symbol string, nextOpen time.Time) {
	if nextOpen.IsZero() {
		l.Status("Market closed for %s, next open unknown", symbol)
		return
	}
	l.Status("Market closed for %s, next open %s", symbol, nextOpen.Format("2006-01-02 15:04:05"))
}

// LogCapitalStatus logs the capital position after an allocation or release
func (l *Logger) LogCapitalStatus(available, total float64, step int) {
	l.Status("Capital: $%.2f / $%.2f available | Allocation Step: %d", available, total, step)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	fullMessage := fmt.Sprintf(context+": "+message, args...)
	l.Warning("%s", fullMessage)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		// Write session end header
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.session, timestamp)
	return filepath.Join(l.logDir, filename)
}

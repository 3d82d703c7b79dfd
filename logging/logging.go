// Package logging provides leveled console output for skillmatch components.
// Lines are plain text so they read well in a terminal and grep well in CI:
//
//	LEVEL TIMESTAMP [component] message key=value ...
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a config value such as "debug" into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if level == "" {
		return LevelInfo, nil
	}
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger writes leveled lines to an io.Writer.
// Loggers derived with WithComponent share the parent's writer lock.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// New creates a new Logger writing INFO and above to stderr.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := New()
	l.output = io.Discard
	return l
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Event helpers ---

// EmbeddingGenerated logs a successful embedding for a competency.
func (l *Logger) EmbeddingGenerated(competencyID, model string, dimension int, duration time.Duration) {
	l.Debug("embedding_generated", map[string]interface{}{
		"competency": competencyID,
		"model":      model,
		"dimension":  dimension,
		"duration":   duration.String(),
	})
}

// EmbeddingFailed logs a competency whose embedding could not be generated.
func (l *Logger) EmbeddingFailed(competencyID string, err error) {
	l.Warn("embedding_failed", map[string]interface{}{
		"competency": competencyID,
		"error":      err.Error(),
	})
}

// BackfillStart logs the start of a backfill run.
func (l *Logger) BackfillStart(pending int, includeStale bool) {
	l.Info("backfill_start", map[string]interface{}{
		"pending":       pending,
		"include_stale": includeStale,
	})
}

// BackfillComplete logs the outcome of a backfill run.
func (l *Logger) BackfillComplete(generated, failed int, duration time.Duration) {
	fields := map[string]interface{}{
		"generated": generated,
		"failed":    failed,
		"duration":  duration.String(),
	}
	if failed > 0 {
		l.Warn("backfill_complete", fields)
		return
	}
	l.Info("backfill_complete", fields)
}

// SearchExecuted logs a competency search.
func (l *Logger) SearchExecuted(mode string, results int, duration time.Duration) {
	l.Debug("search", map[string]interface{}{
		"mode":     mode,
		"results":  results,
		"duration": duration.String(),
	})
}

// SearchFallback logs a semantic search that fell back to keyword search.
func (l *Logger) SearchFallback(reason error) {
	l.Warn("search_fallback", map[string]interface{}{
		"mode":  "keyword",
		"error": reason.Error(),
	})
}

// MatchExecuted logs a competency match over courses or people.
func (l *Logger) MatchExecuted(kind string, selected, candidates, results int, duration time.Duration) {
	l.Debug("match", map[string]interface{}{
		"kind":       kind,
		"selected":   selected,
		"candidates": candidates,
		"results":    results,
		"duration":   duration.String(),
	})
}

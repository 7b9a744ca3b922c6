package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// levelWriter writes one level into <director>/<date>/<level>.log, rotating
// through lumberjack.
type levelWriter struct {
	config  Config
	level   string
	mu      sync.Mutex
	date    string
	current *lumberjack.Logger
}

func newLevelWriter(config Config, level string) *levelWriter {
	return &levelWriter{
		config: config,
		level:  level,
	}
}

// Write implements io.Writer.
func (w *levelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := time.Now().Format("2006-01-02")
	if w.current == nil || w.date != date {
		if w.current != nil {
			_ = w.current.Close()
		}
		w.current = w.open(date)
		w.date = date
	}
	return w.current.Write(p)
}

// Sync implements zapcore.WriteSyncer; lumberjack writes through.
func (w *levelWriter) Sync() error {
	return nil
}

// Close closes the current file.
func (w *levelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

func (w *levelWriter) open(date string) *lumberjack.Logger {
	dirPath := filepath.Join(w.config.Director, date)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		dirPath = w.config.Director
		_ = os.MkdirAll(dirPath, 0755)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(dirPath, w.level+".log"),
		MaxSize:    w.config.MaxSize,
		MaxBackups: w.config.MaxBackups,
		MaxAge:     w.config.MaxAge,
		Compress:   w.config.Compress,
		LocalTime:  true,
	}
}

var (
	writerRegistry   []*levelWriter
	writerRegistryMu sync.Mutex
)

func registerWriter(w *levelWriter) {
	writerRegistryMu.Lock()
	defer writerRegistryMu.Unlock()
	writerRegistry = append(writerRegistry, w)
}

// CloseAllWriters closes every file opened by loggers of this process.
func CloseAllWriters() error {
	writerRegistryMu.Lock()
	defer writerRegistryMu.Unlock()

	var lastErr error
	for _, w := range writerRegistry {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	writerRegistry = nil
	return lastErr
}

// getWriteSyncer combines stdout and the level file according to config.
func getWriteSyncer(config Config, level string) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer
	if config.LogInTerminal {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if config.FileOutput {
		fileWriter := newLevelWriter(config, level)
		registerWriter(fileWriter)
		syncers = append(syncers, fileWriter)
	}
	if len(syncers) == 0 {
		return zapcore.AddSync(io.Discard)
	}
	return zapcore.NewMultiWriteSyncer(syncers...)
}

var _ io.WriteCloser = (*levelWriter)(nil)

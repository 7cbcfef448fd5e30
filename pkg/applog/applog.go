// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.Mutex
	currentPath string
	logger      *zap.Logger
	logFile     *os.File
)

// Options configures Init.
type Options struct {
	// Debug lowers the level to debug on both sinks and traces remote calls.
	Debug bool
	// Dir overrides the per-user log directory.
	Dir string
	// NoFile keeps logging on stderr only.
	NoFile bool
}

// Init configures process logging to a persistent file (JSON) + stderr (console).
func Init(appName string, opts Options) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	// The console stays quiet unless debugging; the file keeps the session trail.
	level, consoleLevel := zapcore.InfoLevel, zapcore.WarnLevel
	if opts.Debug {
		level, consoleLevel = zapcore.DebugLevel, zapcore.DebugLevel
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	consoleCfg.EncodeCaller = zapcore.ShortCallerEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleCfg),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)

	if opts.NoFile {
		setLogger(zap.New(consoleCore, zap.AddCaller()), nil, "")
		return "", nil
	}

	logDir := strings.TrimSpace(opts.Dir)
	if logDir == "" {
		var err error
		logDir, err = defaultLogDir()
		if err != nil || strings.TrimSpace(logDir) == "" {
			logDir = fallbackLogDir()
		}
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		alt := fallbackLogDir()
		if alt != logDir {
			_ = os.MkdirAll(alt, 0755)
			logDir = alt
		}
	}

	fileName := fmt.Sprintf("%s-%s.log", sanitizeName(appName), time.Now().Format("2006-01-02"))
	path := filepath.Join(logDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		// Last-resort fallback to temp directory.
		tmpPath := fallbackLogDir()
		if mkErr := os.MkdirAll(tmpPath, 0755); mkErr != nil {
			setLogger(zap.New(consoleCore, zap.AddCaller()), nil, "")
			return "", err
		}
		path = filepath.Join(tmpPath, fileName)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			setLogger(zap.New(consoleCore, zap.AddCaller()), nil, "")
			return "", err
		}
	}

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level)

	setLogger(zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller()), f, path)

	cleanupOldLogs(logDir, logRetentionDays())
	cleanupLogsByTotalSize(logDir, logMaxTotalBytes())
	return path, nil
}

func setLogger(l *zap.Logger, f *os.File, path string) {
	if logFile != nil {
		_ = logFile.Close()
	}
	logger = l
	logFile = f
	currentPath = path
}

// L returns the process logger. Before Init it is a no-op logger, which keeps
// library code and tests silent.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Named returns the process logger scoped to a component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return currentPath
}

func fallbackLogDir() string {
	return filepath.Join(os.TempDir(), "SignPDFCMD", "logs")
}

func defaultLogDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
		if base == "" {
			userProfile := strings.TrimSpace(os.Getenv("USERPROFILE"))
			if userProfile == "" {
				return "", fmt.Errorf("LOCALAPPDATA/USERPROFILE no disponibles")
			}
			base = filepath.Join(userProfile, "AppData", "Local")
		}
		return filepath.Join(base, "SignPDFCMD", "logs"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", "SignPDFCMD"), nil
	default:
		base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(base, "signpdf-cmd", "logs"), nil
	}
}

func sanitizeName(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "signpdf"
	}
	var b strings.Builder
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

type logFileInfo struct {
	name string
	mod  time.Time
	size int64
}

func listLogFiles(dir string) []logFileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []logFileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFileInfo{name: e.Name(), mod: info.ModTime(), size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	return files
}

func cleanupOldLogs(dir string, keepDays int) {
	cutoff := time.Now().AddDate(0, 0, -keepDays)
	for _, f := range listLogFiles(dir) {
		if f.mod.After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, f.name))
	}
}

func cleanupLogsByTotalSize(dir string, maxBytes int64) {
	if maxBytes <= 0 {
		return
	}
	files := listLogFiles(dir)
	var total int64
	for _, f := range files {
		total += f.size
	}
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		_ = os.Remove(filepath.Join(dir, f.name))
		total -= f.size
	}
}

func logRetentionDays() int {
	const def = 14
	raw := strings.TrimSpace(os.Getenv("SIGNPDF_LOG_RETENTION_DAYS"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 365 {
		return 365
	}
	return n
}

func logMaxTotalBytes() int64 {
	const defMB int64 = 20
	raw := strings.TrimSpace(os.Getenv("SIGNPDF_LOG_MAX_TOTAL_MB"))
	if raw == "" {
		return defMB * 1024 * 1024
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return defMB * 1024 * 1024
	}
	if n > 2048 {
		n = 2048
	}
	return n * 1024 * 1024
}

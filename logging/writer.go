package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/natefinch/lumberjack.v2"

	apperrors "github.com/leeforge/logfactory/errors"
	"github.com/leeforge/logfactory/utils"
)

const fileMode os.FileMode = 0o644

func openLogFile(filename string, truncate bool) (*os.File, error) {
	if err := utils.EnsureParentDir(filename); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(filename, flags, fileMode)
}

func fileExists(path string) bool {
	isDir, exists, err := utils.Exists(path)
	return err == nil && exists && !isDir
}

// fileWriter appends to a single file.
type fileWriter struct {
	mu   sync.Mutex
	file *os.File
}

func newFileWriter(filename string, truncate bool) (*fileWriter, error) {
	f, err := openLogFile(filename, truncate)
	if err != nil {
		return nil, err
	}
	return &fileWriter{file: f}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	return w.file.Write(p)
}

func (w *fileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// sizeRotatingWriter rotates filename once a write would push it past
// maxBytes. Backups are filename.1 (newest) through filename.N (oldest).
// With maxBytes or backupCount at zero the file is never rotated.
type sizeRotatingWriter struct {
	mu          sync.Mutex
	filename    string
	maxBytes    int64
	backupCount int
	file        *os.File
	size        int64
	onRotate    func()
}

func newSizeRotatingWriter(filename string, maxBytes int64, backupCount int, onRotate func()) (*sizeRotatingWriter, error) {
	if maxBytes < 0 || backupCount < 0 {
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalid,
			"rotating file %s: max bytes and backup count must not be negative", filename)
	}
	w := &sizeRotatingWriter{
		filename:    filename,
		maxBytes:    maxBytes,
		backupCount: backupCount,
		onRotate:    onRotate,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *sizeRotatingWriter) open() error {
	f, err := openLogFile(w.filename, false)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *sizeRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.shouldRotate(len(p)) {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// shouldRotate never rotates an empty file, so a record larger than maxBytes
// still lands somewhere.
func (w *sizeRotatingWriter) shouldRotate(n int) bool {
	return w.maxBytes > 0 && w.backupCount > 0 && w.size > 0 && w.size+int64(n) > w.maxBytes
}

func (w *sizeRotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	for i := w.backupCount - 1; i >= 1; i-- {
		src := w.backupName(i)
		if !fileExists(src) {
			continue
		}
		dst := w.backupName(i + 1)
		if err := removeIfExists(dst); err != nil {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	first := w.backupName(1)
	if err := removeIfExists(first); err != nil {
		return err
	}
	if err := os.Rename(w.filename, first); err != nil {
		return err
	}

	if err := w.open(); err != nil {
		return err
	}
	if w.onRotate != nil {
		w.onRotate()
	}
	return nil
}

func (w *sizeRotatingWriter) backupName(i int) string {
	return w.filename + "." + strconv.Itoa(i)
}

func (w *sizeRotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *sizeRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// timeUnit describes one accepted value of the "when" setting.
type timeUnit struct {
	step    time.Duration
	suffix  string
	match   *regexp.Regexp
	daily   bool
	weekday int // 0 is Monday; -1 unless weekly
}

var (
	secondsMatch = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}(\.\w+)?$`)
	minutesMatch = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}(\.\w+)?$`)
	hoursMatch   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}(\.\w+)?$`)
	daysMatch    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(\.\w+)?$`)
)

const day = 24 * time.Hour

func parseWhen(when string) (timeUnit, error) {
	w := strings.ToUpper(strings.TrimSpace(when))
	switch {
	case w == "S":
		return timeUnit{step: time.Second, suffix: "2006-01-02_15-04-05", match: secondsMatch, weekday: -1}, nil
	case w == "M":
		return timeUnit{step: time.Minute, suffix: "2006-01-02_15-04", match: minutesMatch, weekday: -1}, nil
	case w == "H":
		return timeUnit{step: time.Hour, suffix: "2006-01-02_15", match: hoursMatch, weekday: -1}, nil
	case w == "D":
		return timeUnit{step: day, suffix: "2006-01-02", match: daysMatch, weekday: -1}, nil
	case w == "MIDNIGHT":
		return timeUnit{step: day, suffix: "2006-01-02", match: daysMatch, daily: true, weekday: -1}, nil
	case len(w) == 2 && w[0] == 'W' && w[1] >= '0' && w[1] <= '6':
		return timeUnit{step: 7 * day, suffix: "2006-01-02", match: daysMatch, daily: true, weekday: int(w[1] - '0')}, nil
	}
	return timeUnit{}, apperrors.Newf(apperrors.ErrorTypeInvalid, "invalid rollover interval unit %q", when)
}

// timedRotatingWriter rotates filename every interval. The rotated file is
// named after the start of the period it covers. When backupCount is
// positive only that many rotated files are kept.
type timedRotatingWriter struct {
	mu          sync.Mutex
	filename    string
	unit        timeUnit
	interval    time.Duration
	backupCount int
	utc         bool
	now         func() time.Time
	onRotate    func()

	file       *os.File
	rolloverAt time.Time
}

func newTimedRotatingWriter(filename, when string, interval, backupCount int, utc bool, now func() time.Time, onRotate func()) (*timedRotatingWriter, error) {
	unit, err := parseWhen(when)
	if err != nil {
		return nil, err
	}
	if unit.weekday < 0 && interval <= 0 {
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalid, "timed rotating file %s: interval must be positive", filename)
	}
	if unit.weekday >= 0 {
		interval = 1
	}
	if backupCount < 0 {
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalid, "timed rotating file %s: backup count must not be negative", filename)
	}
	if now == nil {
		now = time.Now
	}

	w := &timedRotatingWriter{
		filename:    filename,
		unit:        unit,
		interval:    unit.step * time.Duration(interval),
		backupCount: backupCount,
		utc:         utc,
		now:         now,
		onRotate:    onRotate,
	}

	start := w.clock()
	if info, err := os.Stat(filename); err == nil {
		start = w.inZone(info.ModTime())
	}
	w.rolloverAt = w.computeRollover(start)

	if w.file, err = openLogFile(filename, false); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *timedRotatingWriter) clock() time.Time {
	return w.inZone(w.now())
}

func (w *timedRotatingWriter) inZone(t time.Time) time.Time {
	if w.utc {
		return t.UTC()
	}
	return t.Local()
}

func (w *timedRotatingWriter) computeRollover(t time.Time) time.Time {
	if !w.unit.daily {
		return t.Add(w.interval)
	}

	y, m, d := t.Date()
	wait := 0
	if w.unit.weekday >= 0 {
		today := (int(t.Weekday()) + 6) % 7
		if today < w.unit.weekday {
			wait = w.unit.weekday - today
		} else if today > w.unit.weekday {
			wait = 6 - today + w.unit.weekday + 1
		}
	}
	return time.Date(y, m, d+1+wait, 0, 0, 0, 0, t.Location())
}

func (w *timedRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if now := w.clock(); !now.Before(w.rolloverAt) {
		if err := w.rotate(now); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *timedRotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	periodStart := w.rolloverAt.Add(-w.interval)
	dst := w.filename + "." + periodStart.Format(w.unit.suffix)
	if err := removeIfExists(dst); err != nil {
		return err
	}
	if err := os.Rename(w.filename, dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if w.backupCount > 0 {
		for _, old := range w.expiredBackups() {
			if err := removeIfExists(old); err != nil {
				return err
			}
		}
	}

	f, err := openLogFile(w.filename, false)
	if err != nil {
		return err
	}
	w.file = f

	next := w.computeRollover(now)
	for !next.After(now) {
		next = next.Add(w.interval)
	}
	w.rolloverAt = next

	if w.onRotate != nil {
		w.onRotate()
	}
	return nil
}

// expiredBackups lists rotated files beyond backupCount, oldest first.
func (w *timedRotatingWriter) expiredBackups() []string {
	dir, base := filepath.Split(w.filename)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	prefix := base + "."
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if w.unit.match.MatchString(strings.TrimPrefix(name, prefix)) {
			backups = append(backups, filepath.Join(dir, name))
		}
	}
	if len(backups) <= w.backupCount {
		return nil
	}
	sort.Strings(backups)
	return backups[:len(backups)-w.backupCount]
}

func (w *timedRotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *timedRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// LumberjackOptions configures megabyte-granular rotation with optional
// compression and age-based cleanup.
type LumberjackOptions struct {
	MaxSize    int  `mapstructure:"max_size" json:"maxSize" yaml:"max_size" default:"100"`
	MaxAge     int  `mapstructure:"max_age" json:"maxAge" yaml:"max_age"`
	MaxBackups int  `mapstructure:"max_backups" json:"maxBackups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`
	UTC        bool `mapstructure:"utc" json:"utc" yaml:"utc"`
}

// lumberjackWriter adds Sync to lumberjack.Logger, which flushes on every write.
type lumberjackWriter struct {
	*lumberjack.Logger
}

func newLumberjackWriter(filename string, opts LumberjackOptions) (*lumberjackWriter, error) {
	if err := utils.EnsureParentDir(filename); err != nil {
		return nil, err
	}
	return &lumberjackWriter{Logger: &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    opts.MaxSize,
		MaxAge:     opts.MaxAge,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
		LocalTime:  !opts.UTC,
	}}, nil
}

func (w *lumberjackWriter) Sync() error { return nil }

// encodingWriter transcodes UTF-8 records into a legacy charset before they
// reach the file.
type encodingWriter struct {
	mu  sync.Mutex
	enc *encoding.Encoder
	out zapcore.WriteSyncer
}

// withEncoding wraps out for the named charset. UTF-8 names return out
// unchanged.
func withEncoding(out zapcore.WriteSyncer, name string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return out, nil
	}
	e, err := htmlindex.Get(name)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInvalid, "unknown encoding %q", name)
	}
	return &encodingWriter{enc: encoding.ReplaceUnsupported(e.NewEncoder()), out: out}, nil
}

func (w *encodingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	encoded, err := w.enc.Bytes(p)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	if _, err := w.out.Write(encoded); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *encodingWriter) Sync() error { return w.out.Sync() }

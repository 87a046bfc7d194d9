package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressCallback receives progress events from Process. Implementations
// must be safe for concurrent use; OnProgress and OnError are called from
// worker goroutines.
type ProgressCallback interface {
	// OnStart is called once with the number of image records.
	OnStart(total int)

	// OnProgress is called after each image with the number finished so far.
	OnProgress(current, total int)

	// OnComplete is called when processing is finished.
	OnComplete()

	// OnError is called when an image fails.
	OnError(current int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// BarProgressCallback draws a console progress bar.
type BarProgressCallback struct {
	writer      io.Writer
	description string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewBarProgressCallback creates a progress bar writing to w (stderr when nil).
func NewBarProgressCallback(w io.Writer, description string) *BarProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgressCallback{writer: w, description: description}
}

func (b *BarProgressCallback) OnStart(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.writer
	b.bar = progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (b *BarProgressCallback) OnProgress(current, _ int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Set64(int64(current))
	}
}

func (b *BarProgressCallback) OnComplete() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// OnError is a no-op: failures are logged and listed in the summary.
func (b *BarProgressCallback) OnError(int, error) {}

// LogProgressCallback logs progress updates using slog.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int // Log every N items

	mu        sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how frequently to log progress (every N items).
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = interval
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Starting batch render", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	elapsed := time.Since(l.startTime)
	l.logger.Log(context.Background(), l.level, "Progress update",
		"current", current,
		"total", total,
		"percent", fmt.Sprintf("%.1f", float64(current)/float64(max(total, 1))*100),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Log(context.Background(), l.level, "Batch render completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Image failed", "current", current, "error", err)
}

package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const maxTelegramMessageLen = 4096

// DigestEntry is one distinct alert; repeats of the same text at the same level raise Count
type DigestEntry struct {
	Message   string
	Level     slog.Level
	Timestamp time.Time
	Count     int
}

// DigestBuffer collects low-severity alerts and hands them to deliver as one text per interval
type DigestBuffer struct {
	mu       sync.Mutex
	entries  []*DigestEntry
	index    map[string]*DigestEntry
	interval time.Duration
	deliver  func(text string)
	stopCh   chan struct{}
	done     chan struct{}
}

func NewDigestBuffer(interval time.Duration, deliver func(text string)) *DigestBuffer {
	return &DigestBuffer{
		index:    make(map[string]*DigestEntry),
		interval: interval,
		deliver:  deliver,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *DigestBuffer) Add(msg string, level slog.Level) {
	key := level.String() + "|" + msg
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.index[key]; ok {
		e.Count++
		return
	}
	e := &DigestEntry{Message: msg, Level: level, Timestamp: time.Now(), Count: 1}
	d.index[key] = e
	d.entries = append(d.entries, e)
}

func (d *DigestBuffer) StartTicker() {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Flush()
			case <-d.stopCh:
				d.Flush()
				return
			}
		}
	}()
}

func (d *DigestBuffer) Flush() {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	d.index = make(map[string]*DigestEntry)
	d.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	d.deliver(formatDigest(entries))
}

func (d *DigestBuffer) Stop() {
	close(d.stopCh)
	<-d.done
}

// formatDigest groups entries by level, most severe first.
// Messages are already escaped by the log handler.
func formatDigest(entries []*DigestEntry) string {
	total := 0
	grouped := make(map[slog.Level][]*DigestEntry)
	var levels []slog.Level
	for _, e := range entries {
		if _, ok := grouped[e.Level]; !ok {
			levels = append(levels, e.Level)
		}
		grouped[e.Level] = append(grouped[e.Level], e)
		total += e.Count
	}
	slices.SortFunc(levels, func(a, b slog.Level) int { return int(b) - int(a) })

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Digest* \\(%d messages\\)\n\n", total)
	for _, level := range levels {
		fmt.Fprintf(&sb, "*%s* \\(%d\\):\n", level.String(), len(grouped[level]))
		for _, e := range grouped[level] {
			fmt.Fprintf(&sb, "  `%s` %s", e.Timestamp.Format("15:04"), e.Message)
			if e.Count > 1 {
				fmt.Fprintf(&sb, " \\(x%d\\)", e.Count)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

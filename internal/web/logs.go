package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the newest log lines for the UI. Install it with
// log.SetOutput(io.MultiWriter(os.Stderr, buf)).
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

// Write implements io.Writer. Text after the last newline is held until the
// next write completes it.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		b.partial = append(b.partial, rest[:i]...)
		b.appendLineLocked(string(b.partial))
		b.partial = b.partial[:0]
		rest = rest[i+1:]
	}
	b.partial = append(b.partial, rest...)
	return len(p), nil
}

func (b *LogBuffer) appendLineLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
		b.dropped += uint64(over)
	}
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

// Snapshot returns up to tail of the newest lines. A non-empty pkg keeps only
// lines logged with that "pkg:" prefix.
func (b *LogBuffer) Snapshot(tail int, pkg string) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = 200
	}
	for i := len(b.lines) - 1; i >= 0 && len(lines) < tail; i-- {
		if pkg == "" || hasPkg(b.lines[i], pkg) {
			lines = append(lines, b.lines[i])
		}
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, b.dropped
}

// hasPkg matches both bare lines and lines behind the standard log date
// prefix.
func hasPkg(line, pkg string) bool {
	tag := pkg + ": "
	return strings.HasPrefix(line, tag) || strings.Contains(line, " "+tag)
}

// Handler serves GET /api/logs?tail=N&pkg=NAME&format=text.
func (b *LogBuffer) Handler() http.Handler {
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		tail := 200
		if s := strings.TrimSpace(q.Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}
		lines, dropped := b.Snapshot(tail, strings.TrimSpace(q.Get("pkg")))

		if strings.EqualFold(q.Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			_, _ = fmt.Fprint(w, strings.Join(lines, "\n"))
			if len(lines) > 0 {
				_, _ = fmt.Fprintln(w)
			}
			return
		}
		writeJSON(w, LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Lines:   lines,
		})
	})
}

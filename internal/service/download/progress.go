package download

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const (
	barWidth       = 40
	redrawInterval = 100 * time.Millisecond
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressBar renders "[####>----] 1.2 MB/5.0 MB (eta 3s)" on a single
// line, redrawing at most every redrawInterval.
type progressBar struct {
	out      io.Writer
	total    int64
	written  int64
	started  time.Time
	lastDraw time.Time
}

func newProgressBar(out io.Writer, total int64) *progressBar {
	return &progressBar{out: out, total: total, started: time.Now()}
}

func (p *progressBar) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if now := time.Now(); now.Sub(p.lastDraw) >= redrawInterval {
		p.lastDraw = now
		p.draw()
	}
	return len(b), nil
}

func (p *progressBar) finish() {
	p.draw()
	fmt.Fprintln(p.out)
}

func (p *progressBar) draw() {
	fmt.Fprintf(p.out, "\r%s", p.render(time.Since(p.started)))
}

func (p *progressBar) render(elapsed time.Duration) string {
	done := humanize.Bytes(uint64(p.written))
	if p.total <= 0 {
		return fmt.Sprintf("[%s] %s", elapsed.Truncate(time.Second), done)
	}

	ratio := float64(p.written) / float64(p.total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * barWidth)
	bar := strings.Repeat("#", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	eta := "?"
	if p.written > 0 && ratio < 1 {
		remaining := time.Duration(float64(elapsed) * (1 - ratio) / ratio)
		eta = remaining.Truncate(time.Second).String()
	} else if ratio >= 1 {
		eta = "0s"
	}
	return fmt.Sprintf("[%s] [%s] %s/%s (eta %s)",
		elapsed.Truncate(time.Second), bar, done, humanize.Bytes(uint64(p.total)), eta)
}

// Package logmux turns the combined output streams of concurrently running
// processes into one aligned, colorized, timestamped log on a shared sink.
package logmux

import (
	"bufio"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var logger = log.New(io.Discard, "logmux: ", log.LstdFlags)

// SetTraceOutput redirects the package trace log, discarded by default.
func SetTraceOutput(w io.Writer) {
	logger.SetOutput(w)
}

// ErrUsage reports a multiplexer constructed without a process name or a
// sink to write to.
var ErrUsage = errors.New("logmux: no process name configured")

// Multiplexer formats one process's combined output onto the shared sink.
// The prefix column is padded once at construction, so every multiplexer
// built with the same pad width stays aligned no matter how their lines
// interleave.
type Multiplexer struct {
	prefix string
	style  lipgloss.Style
	sink   *Sink
	now    func() time.Time
}

// New builds a multiplexer for the named process. padWidth is the alignment
// width shared by the whole run; the separator sits one space past it, so a
// name of maximum length still gets a single space before the pipe.
func New(name string, padWidth int, style lipgloss.Style, sink *Sink) (*Multiplexer, error) {
	if name == "" || sink == nil {
		return nil, ErrUsage
	}
	pad := padWidth - len(name) + 1
	if pad < 1 {
		pad = 1
	}
	return &Multiplexer{
		prefix: name + strings.Repeat(" ", pad) + "|",
		style:  style,
		sink:   sink,
		now:    time.Now,
	}, nil
}

// Run copies lines from r to the sink until the stream closes. Trailing
// whitespace is preserved, and a final line arriving without a newline is
// still emitted rather than dropped. The reader being closed underneath a
// blocked read counts as end of stream: that is how a shutdown detaches a
// multiplexer whose process left orphans holding the write end.
func (m *Multiplexer) Run(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			m.emit(strings.TrimSuffix(line, "\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (m *Multiplexer) emit(line string) {
	// Backslashes are doubled so the payload cannot be re-read as an
	// escape sequence by whatever renders the stream downstream.
	payload := strings.ReplaceAll(line, `\`, `\\`)
	stamp := m.now().Format("15:04:05")
	if err := m.sink.WriteLine(m.style.Render(stamp+" "+m.prefix) + " " + payload); err != nil {
		logger.Printf("write failed: %v", err)
	}
}

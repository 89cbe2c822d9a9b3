package lazyflutter

import (
	"fmt"
	"io"
	"sync"

	"github.com/icarus-itcs/lazyflutter/internal/picker"
)

// plainSurface is the non-interactive surface used by subcommands. Lists
// resolve dismissed straight away since nobody can answer them.
type plainSurface struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func newPlainSurface(out, errOut io.Writer) *plainSurface {
	return &plainSurface{out: out, errOut: errOut}
}

func (s *plainSurface) OpenList(placeholder string, items []picker.Item, busy bool) picker.List {
	done := make(chan picker.Selection)
	close(done)
	return dismissedList{done: done}
}

func (s *plainSurface) ShowProgress(title string) picker.Progress {
	s.printf(s.out, "%s\n", title)
	return plainProgress{surface: s}
}

func (s *plainSurface) ShowError(msg string) {
	s.printf(s.errOut, "error: %s\n", msg)
}

func (s *plainSurface) printf(w io.Writer, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(w, format, args...)
}

type dismissedList struct {
	done chan picker.Selection
}

func (dismissedList) SetItems([]picker.Item)          {}
func (dismissedList) SetBusy(bool)                    {}
func (l dismissedList) Done() <-chan picker.Selection { return l.done }
func (dismissedList) Close()                          {}

type plainProgress struct {
	surface *plainSurface
}

func (p plainProgress) Report(msg string) {
	p.surface.printf(p.surface.out, "  %s\n", msg)
}

func (plainProgress) Done() {}

var _ picker.Surface = (*plainSurface)(nil)

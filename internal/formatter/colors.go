package formatter

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// painter renders with the palette when styled and returns text unchanged otherwise.
type painter struct {
	styled bool
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p painter) Title(text string) string { return p.paint(styles.title, text) }
func (p painter) OK(text string) string    { return p.paint(styles.ok, text) }
func (p painter) Err(text string) string   { return p.paint(styles.err, text) }
func (p painter) Warn(text string) string  { return p.paint(styles.warn, text) }
func (p painter) Help(text string) string  { return p.paint(styles.help, text) }

package center

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ykvlv/time-signal/internal/notify"
)

// Delivery is one request reaching the user.
type Delivery struct {
	Identifier string
	Content    notify.Content
	At         time.Time
}

// Presenter shows deliveries and the flash cue.
type Presenter interface {
	Present(d Delivery) error
	Flash(at time.Time) error
}

// ConsolePresenter writes to a terminal: a coloured banner, the bell
// character for sound, and an inverted line for the flash cue.
type ConsolePresenter struct {
	mu    sync.Mutex
	w     io.Writer
	title *color.Color
	body  *color.Color
	meta  *color.Color
	flash *color.Color
}

func NewConsolePresenter(w io.Writer) *ConsolePresenter {
	return &ConsolePresenter{
		w:     w,
		title: color.New(color.FgCyan, color.Bold),
		body:  color.New(color.FgWhite),
		meta:  color.New(color.Faint),
		flash: color.New(color.BgWhite, color.FgBlack, color.Bold),
	}
}

func (p *ConsolePresenter) Present(d Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stamp := d.At.Format("15:04:05")
	if strings.TrimSpace(d.Content.Title+d.Content.Body) == "" {
		// Banner off: only a minimal marker, as the platform would show.
		if _, err := p.meta.Fprintf(p.w, "[%s] •\n", stamp); err != nil {
			return err
		}
	} else {
		if _, err := p.title.Fprintf(p.w, "[%s] %s", stamp, d.Content.Title); err != nil {
			return err
		}
		if body := strings.TrimSpace(d.Content.Body); body != "" {
			if _, err := p.body.Fprintf(p.w, "  %s", body); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(p.w); err != nil {
			return err
		}
	}

	switch d.Content.Sound.Kind {
	case notify.SoundDefault:
		_, err := p.meta.Fprint(p.w, "\a  ♪ default\n")
		return err
	case notify.SoundNamed:
		_, err := p.meta.Fprintf(p.w, "\a  ♪ %s\n", filepath.Base(d.Content.Sound.File))
		return err
	}
	return nil
}

func (p *ConsolePresenter) Flash(at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.flash.Fprintf(p.w, "  ⚡ %s  \n", at.Format("15:04"))
	return err
}

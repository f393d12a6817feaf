// Package tray hosts the system-tray surface: the icon bitmap, its tooltip
// and a minimal menu with a single terminate action.
package tray

import (
	"github.com/frostyard/glacierctl/internal/logger"
	"github.com/getlantern/systray"
)

const title = "glacierctl"

// Tray wraps the desktop shell tray item. Run owns the calling goroutine
// for the lifetime of the application; SetIcon and SetTooltip are safe to
// call from the scheduler goroutine.
type Tray struct{}

func New() *Tray {
	return &Tray{}
}

// Run enters the tray main loop. onReady fires once the item is installed,
// onExit after Quit, in that order.
func (t *Tray) Run(onReady, onExit func()) {
	systray.Run(func() {
		systray.SetTitle(title)
		systray.SetTooltip(title)

		quit := systray.AddMenuItem("Quit", "Stop mirroring and exit")
		go func() {
			<-quit.ClickedCh
			logger.Info().Msg("Quit requested from tray menu")
			systray.Quit()
		}()

		onReady()
	}, onExit)
}

// Quit tears the tray item down and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetIcon installs a new icon bitmap.
func (t *Tray) SetIcon(data []byte) {
	if len(data) == 0 {
		return
	}
	systray.SetIcon(data)
}

// SetTooltip updates the hover text.
func (t *Tray) SetTooltip(text string) {
	systray.SetTooltip(text)
}

package toast

import (
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"toastcall/internal/core"
)

// Notifier creates notifications for one application and suppresses
// repeated pushes of the same title and message within the throttle window.
type Notifier struct {
	AppID string
	// Icon is applied to every notification from Create.
	Icon string

	recent *cache.Cache
	show   func(*Notification) error
	clear  func(appID string) error
}

// NewNotifier returns a Notifier. A throttle of zero disables suppression.
func NewNotifier(appID, icon string, throttle time.Duration) *Notifier {
	nf := &Notifier{
		AppID: appID,
		Icon:  icon,
		show:  push,
		clear: clearHistory,
	}
	if throttle > 0 {
		nf.recent = cache.New(throttle, 2*throttle)
	}
	return nf
}

// Create builds a notification carrying the notifier's app id and icon.
// Options may override the icon.
func (nf *Notifier) Create(title, msg string, opts ...Option) (*Notification, error) {
	if nf.Icon != "" {
		icon := nf.Icon
		if abs, err := filepath.Abs(icon); err == nil {
			icon = abs
		}
		opts = append([]Option{WithIcon(icon)}, opts...)
	}
	return New(nf.AppID, title, msg, opts...)
}

// Notify shows n unless an identical toast was pushed within the throttle
// window. It reports whether the toast was pushed.
func (nf *Notifier) Notify(n *Notification) (bool, error) {
	key := n.Title + "\x00" + n.Message
	if nf.recent != nil {
		if err := nf.recent.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			core.Log.Debugf("Toast", "Suppressed repeated %q", n.Title)
			return false, nil
		}
	}
	if err := nf.show(n); err != nil {
		if nf.recent != nil {
			nf.recent.Delete(key)
		}
		core.Log.Warnf("Toast", "Notification %q failed: %v", n.Title, err)
		return false, err
	}
	return true, nil
}

// Clear removes this application's notifications from the action center.
func (nf *Notifier) Clear() error {
	if err := nf.clear(nf.AppID); err != nil {
		return err
	}
	if nf.recent != nil {
		nf.recent.Flush()
	}
	core.Log.Debugf("Toast", "Cleared notifications of %s", nf.AppID)
	return nil
}

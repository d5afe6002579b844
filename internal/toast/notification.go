// Package toast builds Windows toast notifications whose buttons launch
// action URLs, so a click relaunches the application through its protocol
// association.
package toast

import (
	"errors"
	"fmt"

	"toastcall/internal/dispatch"
)

// MaxActions is the number of buttons a toast can carry.
const MaxActions = 5

var (
	ErrInvalidDuration = errors.New("toast: duration must be short or long")
	ErrNoTitle         = errors.New("toast: title is required")
	ErrTooManyActions  = fmt.Errorf("toast: at most %d actions", MaxActions)
	ErrNoURL           = errors.New("toast: action has no URL")
	ErrUnsupported     = errors.New("toast: notifications are only available on Windows")
)

// Duration is how long the toast stays on screen.
type Duration string

const (
	Short Duration = "short"
	Long  Duration = "long"
)

// ParseDuration accepts "short" or "long"; empty means Short.
func ParseDuration(s string) (Duration, error) {
	switch Duration(s) {
	case "", Short:
		return Short, nil
	case Long:
		return Long, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
}

// Sound selects one of the system notification sounds.
type Sound int

const (
	Silent Sound = iota
	Default
	IM
	Mail
	Reminder
	SMS
	LoopingAlarm
	LoopingAlarm2
	LoopingCall
	LoopingCall2
)

// Action is a toast button.
type Action struct {
	Label string
	URL   string
}

// Notification is one toast. Build it with New or Notifier.Create.
type Notification struct {
	AppID    string
	Title    string
	Message  string
	Icon     string
	Duration Duration
	// Launch is opened when the toast body is clicked.
	Launch  string
	Audio   Sound
	Loop    bool
	Actions []Action
}

// Option configures a Notification in New.
type Option func(*Notification)

func WithIcon(path string) Option {
	return func(n *Notification) { n.Icon = path }
}

func WithDuration(d Duration) Option {
	return func(n *Notification) { n.Duration = d }
}

// WithLaunch sets the URL opened by a click on the toast body.
func WithLaunch(url string) Option {
	return func(n *Notification) { n.Launch = url }
}

// WithLaunchCallback makes a click on the toast body run cb.
func WithLaunchCallback(cb dispatch.Callback) Option {
	return WithLaunch(cb.URL)
}

// New creates a silent notification.
func New(appID, title, msg string, opts ...Option) (*Notification, error) {
	n := &Notification{
		AppID:    appID,
		Title:    title,
		Message:  msg,
		Duration: Short,
		Audio:    Silent,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.Title == "" {
		return nil, ErrNoTitle
	}
	d, err := ParseDuration(string(n.Duration))
	if err != nil {
		return nil, err
	}
	n.Duration = d
	return n, nil
}

// AddAction appends a button that opens url.
func (n *Notification) AddAction(label, url string) error {
	if url == "" {
		return fmt.Errorf("%w: %q", ErrNoURL, label)
	}
	if len(n.Actions) >= MaxActions {
		return ErrTooManyActions
	}
	n.Actions = append(n.Actions, Action{Label: label, URL: url})
	return nil
}

// AddCallback appends a button that runs cb in the listening instance.
func (n *Notification) AddCallback(label string, cb dispatch.Callback) error {
	return n.AddAction(label, cb.URL)
}

// SetAudio picks the sound; loop repeats it until the toast is dismissed.
func (n *Notification) SetAudio(s Sound, loop bool) {
	n.Audio = s
	n.Loop = loop
}

// Show pushes the notification to the action center.
func (n *Notification) Show() error {
	return push(n)
}

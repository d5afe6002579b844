//go:build windows

package toast

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	gotoast "github.com/go-toast/toast"
)

func push(n *Notification) error {
	tn := gotoast.Notification{
		AppID:   n.AppID,
		Title:   n.Title,
		Message: n.Message,
		Icon:    n.Icon,
		Loop:    n.Loop,
	}
	if n.Duration == Long {
		tn.Duration = gotoast.Long
	} else {
		tn.Duration = gotoast.Short
	}
	if n.Launch != "" {
		tn.ActivationType = "protocol"
		tn.ActivationArguments = n.Launch
	}
	for _, a := range n.Actions {
		tn.Actions = append(tn.Actions, gotoast.Action{
			Type:      "protocol",
			Label:     a.Label,
			Arguments: a.URL,
		})
	}

	switch n.Audio {
	case Default:
		tn.Audio = gotoast.Default
	case IM:
		tn.Audio = gotoast.IM
	case Mail:
		tn.Audio = gotoast.Mail
	case Reminder:
		tn.Audio = gotoast.Reminder
	case SMS:
		tn.Audio = gotoast.SMS
	case LoopingAlarm:
		tn.Audio = gotoast.LoopingAlarm
	case LoopingAlarm2:
		tn.Audio = gotoast.LoopingAlarm2
	case LoopingCall:
		tn.Audio = gotoast.LoopingCall
	case LoopingCall2:
		tn.Audio = gotoast.LoopingCall2
	default:
		tn.Audio = gotoast.Silent
	}

	if err := tn.Push(); err != nil {
		return fmt.Errorf("toast: push %q: %w", n.Title, err)
	}
	return nil
}

// clearHistory removes appID's notifications from the action center.
func clearHistory(appID string) error {
	script := `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
[Windows.UI.Notifications.ToastNotificationManager]::History.Clear('` + strings.ReplaceAll(appID, "'", "''") + `')
`
	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("toast: clear history: %w", err)
	}
	return nil
}

package notifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// DesktopSender delivers notifications through notify-send. The notification
// is marked urgent and long-lived; there is no reliable cross-desktop action
// callback from notify-send, so the body tells the user what to open.
type DesktopSender struct{}

func NewDesktopSender() *DesktopSender { return &DesktopSender{} }

func (d *DesktopSender) Name() string { return "desktop" }

func (d *DesktopSender) Send(ctx context.Context, n Notification) error {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return errors.New("notify-send not available")
	}
	cmd := exec.CommandContext(ctx, "notify-send",
		"--urgency=critical",
		"--app-name=appsched",
		n.Title, n.Body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %v: %s", err, out)
	}
	return nil
}

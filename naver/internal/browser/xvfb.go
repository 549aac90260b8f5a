// CLAUDE:SUMMARY Starts and stops the Xvfb virtual display backing headful mode.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// startXvfb launches the virtual display headful mode renders into and
// waits for its X socket to appear before Chrome is pointed at it.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil // already running
	}

	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}

	if err := waitForDisplay(display, 3*time.Second); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}

	m.xvfb = cmd
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

// waitForDisplay polls for the display's X socket (":99" listens on
// /tmp/.X11-unix/X99), so Chrome never races a display that is still
// coming up.
func waitForDisplay(display string, timeout time.Duration) error {
	sock := filepath.Join("/tmp/.X11-unix", "X"+strings.TrimPrefix(display, ":"))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("xvfb: display %s not up after %s", display, timeout)
}

// stopXvfb kills the Xvfb process if running.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
}

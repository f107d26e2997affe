// Package netctl toggles the kiosk machine's network connection through
// the OS tooling. It is a best-effort post-transition hook: a failure is
// logged and never propagated, so broken network tooling cannot leave a
// session half-started.
package netctl

import (
	"os/exec"
	"runtime"

	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// Toggler enables or disables the machine's network interface.
type Toggler struct {
	enabled bool
	iface   string
	runner  func(name string, arg ...string) error
}

func NewToggler(enabled bool, iface string) *Toggler {
	return &Toggler{
		enabled: enabled,
		iface:   iface,
		runner: func(name string, arg ...string) error {
			return exec.Command(name, arg...).Run()
		},
	}
}

// Up re-enables the network interface.
func (t *Toggler) Up() {
	t.toggle(true)
}

// Down disables the network interface.
func (t *Toggler) Down() {
	t.toggle(false)
}

func (t *Toggler) toggle(up bool) {
	if !t.enabled {
		return
	}

	name, args := t.command(up)
	if name == "" {
		logger.Warn("netctl: unsupported platform", runtime.GOOS)
		return
	}
	if err := t.runner(name, args...); err != nil {
		logger.Err("netctl: network toggle failed:", err)
	}
}

func (t *Toggler) command(up bool) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		state := "disable"
		if up {
			state = "enable"
		}
		return "netsh", []string{"interface", "set", "interface", t.iface, state}
	case "darwin":
		state := "off"
		if up {
			state = "on"
		}
		return "networksetup", []string{"-setnetworkserviceenabled", t.iface, state}
	case "linux":
		verb := "disconnect"
		if up {
			verb = "connect"
		}
		return "nmcli", []string{"device", verb, t.iface}
	default:
		return "", nil
	}
}

package runners

import (
	"fmt"
	"runtime"

	"tunlink/application"
	darwin_tun "tunlink/infrastructure/PAL/darwin/tun"
	"tunlink/infrastructure/PAL/exec_commander"
	linux_tun "tunlink/infrastructure/PAL/linux/tun"
	"tunlink/infrastructure/settings"
)

// NewTunManager picks the platform TUN backend.
func NewTunManager(conf settings.Tun) (application.TunManager, error) {
	commander := exec_commander.NewExecCommander()
	switch runtime.GOOS {
	case "linux":
		return linux_tun.NewManager(conf, commander), nil
	case "darwin":
		return darwin_tun.NewManager(conf, commander), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

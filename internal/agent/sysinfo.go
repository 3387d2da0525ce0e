package agent

import (
	"os"

	"github.com/shirou/gopsutil/v3/host"

	"printfleet/internal/model"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// CollectSystemInfo snapshots the host for the registration payload. A probe
// failure degrades to whatever the OS will tell us; registration must not
// fail because a platform detail is unreadable.
func CollectSystemInfo() model.SystemInfo {
	info := model.SystemInfo{AgentVersion: Version}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.OS = hostInfo.OS
		info.Platform = hostInfo.Platform
		info.KernelVersion = hostInfo.KernelVersion
		info.UptimeSeconds = hostInfo.Uptime
	} else if hostname, hostErr := os.Hostname(); hostErr == nil {
		info.Hostname = hostname
	}

	return info
}

package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/avhost/av/internal/telemetry"
)

// SystemInfo is returned by GET /api/v1/system
type SystemInfo struct {
	Hostname      string                 `json:"hostname"`
	Platform      string                 `json:"platform"`
	PlatformVer   string                 `json:"platform_version"`
	KernelVersion string                 `json:"kernel_version"`
	UptimeSeconds uint64                 `json:"uptime_seconds"`
	CPU           telemetry.PlatformInfo `json:"cpu"`
	CPUUsage      float64                `json:"cpu_usage_percent"`
	Memory        MemoryInfo             `json:"memory"`
	Process       ProcessInfo            `json:"process"`
}

// MemoryInfo is host memory in bytes
type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// ProcessInfo describes this process
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	RSS        uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	Uptime     string  `json:"uptime"`
}

// GetSystemInfo handles GET /api/v1/system
func (c *Controller) GetSystemInfo(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	hostInfo, err := host.InfoWithContext(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get host information", http.StatusInternalServerError)
	}

	memInfo, err := mem.VirtualMemoryWithContext(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get memory information", http.StatusInternalServerError)
	}

	info := SystemInfo{
		Hostname:      hostInfo.Hostname,
		Platform:      hostInfo.Platform,
		PlatformVer:   hostInfo.PlatformVersion,
		KernelVersion: hostInfo.KernelVersion,
		UptimeSeconds: hostInfo.Uptime,
		CPU:           telemetry.Platform(),
		Memory: MemoryInfo{
			Total:       memInfo.Total,
			Used:        memInfo.Used,
			Available:   memInfo.Available,
			UsedPercent: memInfo.UsedPercent,
		},
		Process: ProcessInfo{
			PID:        int32(os.Getpid()),
			Goroutines: runtime.NumGoroutine(),
			Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		},
	}

	// interval 0 compares against the previous call and does not block
	if usage, err := cpu.PercentWithContext(reqCtx, 0, false); err == nil && len(usage) > 0 {
		info.CPUUsage = usage[0]
	}

	if proc, err := process.NewProcessWithContext(reqCtx, info.Process.PID); err == nil {
		if m, err := proc.MemoryInfoWithContext(reqCtx); err == nil && m != nil {
			info.Process.RSS = m.RSS
		}
		if p, err := proc.CPUPercentWithContext(reqCtx); err == nil {
			info.Process.CPUPercent = p
		}
	}

	return ctx.JSON(http.StatusOK, info)
}

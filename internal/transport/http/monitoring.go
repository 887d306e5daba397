package http

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

func (s *Server) monitoring(c *gin.Context) {
	out := gin.H{
		"uptime_s":        int(time.Since(startedAt).Seconds()),
		"active_sessions": s.registry.Count(),
		"goroutines":      runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["mem_used_percent"] = vm.UsedPercent
	}
	// Process metrics are best effort.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			out["process_rss_bytes"] = info.RSS
		}
	}

	c.JSON(http.StatusOK, out)
}

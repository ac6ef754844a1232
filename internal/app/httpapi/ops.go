package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/R3E-Network/souschef/internal/app/metrics"
	"github.com/R3E-Network/souschef/internal/httputil"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

func metricsHandler() http.Handler { return metrics.Handler() }

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "souschef",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type memoryInfo struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

type infoResponse struct {
	Service    string      `json:"service"`
	Version    string      `json:"version"`
	Uptime     string      `json:"uptime"`
	StartedAt  time.Time   `json:"started_at"`
	GoVersion  string      `json:"go_version"`
	Goroutines int         `json:"goroutines"`
	HeapBytes  uint64      `json:"heap_bytes"`
	Host       *memoryInfo `json:"host_memory,omitempty"`
	Storage    string      `json:"storage"`
	Remote     bool        `json:"remote"`
	Sync       bool        `json:"sync"`
	Components []string    `json:"components"`
}

func (h *handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	cfg := h.app.Config()
	storage := cfg.Database.Driver
	if cfg.Remote.Serve {
		storage = "remote"
	}
	info := infoResponse{
		Service:    "souschef",
		Version:    Version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		StartedAt:  h.started.UTC(),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  ms.HeapAlloc,
		Storage:    storage,
		Remote:     h.app.Remote != nil,
		Sync:       h.app.Sync != nil,
		Components: h.app.Services(),
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		info.Host = &memoryInfo{TotalBytes: vm.Total, UsedBytes: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		h.log.WithContext(r.Context()).WithError(err).Debug("read host memory")
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

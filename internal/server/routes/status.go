package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/temp-link/temp-link/internal/cache"
	"github.com/temp-link/temp-link/internal/version"
)

// StatusOptions 提供诊断接口所需的运行时信息。
type StatusOptions struct {
	Registry        *cache.Registry
	ScratchPath     string
	TTL             time.Duration
	SweepInterval   time.Duration
	MaxArtifactSize int64
	StartedAt       time.Time
}

// RegisterStatusRoutes 暴露 /-/status 与 /-/artifacts 诊断接口，供运维
// 查询服务配置与暂存区内容。
func RegisterStatusRoutes(app *fiber.App, opts StatusOptions) {
	if app == nil || opts.Registry == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(statusPayload{
			Version:              version.Full(),
			UptimeSeconds:        int64(time.Since(opts.StartedAt) / time.Second),
			ArtifactCount:        opts.Registry.Len(),
			ScratchPath:          opts.ScratchPath,
			TTLSeconds:           int64(opts.TTL / time.Second),
			SweepIntervalSeconds: int64(opts.SweepInterval / time.Second),
			MaxArtifactSize:      opts.MaxArtifactSize,
		})
	})

	app.Get("/-/artifacts", func(c fiber.Ctx) error {
		now := time.Now()
		entries := opts.Registry.Snapshot()
		payload := make([]artifactPayload, 0, len(entries))
		for _, entry := range entries {
			idle := now.Sub(entry.LastAccess)
			remaining := opts.TTL - idle
			if remaining < 0 {
				remaining = 0
			}
			payload = append(payload, artifactPayload{
				Name:             entry.Name,
				IdleSeconds:      int64(idle / time.Second),
				ExpiresInSeconds: int64(remaining / time.Second),
			})
		}
		return c.JSON(fiber.Map{"artifacts": payload})
	})
}

type statusPayload struct {
	Version              string `json:"version"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	ArtifactCount        int    `json:"artifact_count"`
	ScratchPath          string `json:"scratch_path"`
	TTLSeconds           int64  `json:"ttl_seconds"`
	SweepIntervalSeconds int64  `json:"sweep_interval_seconds"`
	MaxArtifactSize      int64  `json:"max_artifact_size"`
}

type artifactPayload struct {
	Name             string `json:"name"`
	IdleSeconds      int64  `json:"idle_seconds"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

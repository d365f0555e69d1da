package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/temp-link/temp-link/internal/cache"
	"github.com/temp-link/temp-link/internal/logging"
	"github.com/temp-link/temp-link/internal/server"
)

// Handler 将「生成下载链接」与「取回工件」两个操作暴露为 Fiber 处理器，
// 内部复用共享的抓取器、存储与注册表。
type Handler struct {
	fetcher  *Fetcher
	store    cache.Store
	registry *cache.Registry
	logger   *logrus.Logger
	ttl      time.Duration
}

// NewHandler constructs a download handler with shared fetcher/store/registry.
func NewHandler(fetcher *Fetcher, store cache.Store, registry *cache.Registry, logger *logrus.Logger, ttl time.Duration) *Handler {
	return &Handler{
		fetcher:  fetcher,
		store:    store,
		registry: registry,
		logger:   logger,
		ttl:      ttl,
	}
}

// generateRequest 是 POST /generate 的请求体。
type generateRequest struct {
	FileURL string `json:"file_url"`
}

// Generate 抓取请求体中的 URL，成功后返回一次性下载地址与落盘文件名。
func (h *Handler) Generate(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	var payload generateRequest
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", "request body must be JSON with a file_url field")
	}

	rawURL := strings.TrimSpace(payload.FileURL)
	if rawURL == "" {
		return h.writeError(c, fiber.StatusBadRequest, "url_required", "file_url cannot be empty")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	artifact, err := h.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		h.logGenerate(rawURL, "", requestID, started, err)
		return h.renderFetchError(c, err)
	}

	h.logGenerate(rawURL, artifact.Name, requestID, started, nil)
	return c.JSON(fiber.Map{
		"download_url": fmt.Sprintf("%s://%s/download/%s", c.Protocol(), requestHost(c), artifact.Name),
		"filename":     artifact.Name,
	})
}

// Retrieve 按名称取回工件并以附件形式流式回传，同时刷新滑动 TTL。
func (h *Handler) Retrieve(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	name := c.Params("name")

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.store.Open(ctx, name)
	if err != nil {
		h.logRetrieve(name, requestID, started, false, err)
		switch {
		case errors.Is(err, cache.ErrInvalidName):
			return h.writeError(c, fiber.StatusBadRequest, "invalid_name", "artifact name contains forbidden characters")
		case errors.Is(err, cache.ErrNotFound):
			return h.writeError(c, fiber.StatusNotFound, "not_found", "artifact does not exist or has expired")
		default:
			return h.writeError(c, fiber.StatusInternalServerError, "internal_error", "could not open artifact")
		}
	}

	// 注册表条目可能在 Open 之后被清扫器移除；此时继续用已打开的句柄
	// 完成本次响应，但不重新登记名称。
	touched := h.registry.Touch(name)
	if !touched {
		h.logger.WithFields(logging.ArtifactFields("retrieve", name)).Warn("registry_entry_missing")
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Artifact.Name))
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	if touched {
		c.Set("X-Temp-Link-Expires-At", time.Now().Add(h.ttl).UTC().Format(time.RFC3339))
	}
	if length := result.Artifact.SizeBytes; length > 0 {
		c.Response().Header.SetContentLength(int(length))
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		result.Reader.Close()
		h.logRetrieve(name, requestID, started, touched, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	result.Reader.Close()
	h.logRetrieve(name, requestID, started, touched, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read artifact failed: %v", err))
	}
	return nil
}

// renderFetchError 将错误分类学映射为 HTTP 状态码与机器可读错误码。
func (h *Handler) renderFetchError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return h.writeError(c, fiber.StatusBadRequest, "invalid_url", "file_url must be an absolute http(s) url")
	case errors.Is(err, ErrTimeout):
		return h.writeError(c, fiber.StatusGatewayTimeout, "fetch_timeout", "upstream did not respond in time")
	case errors.Is(err, ErrUpstream):
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed", "could not download from the source url")
	case errors.Is(err, cache.ErrSizeExceeded):
		return h.writeError(c, fiber.StatusRequestEntityTooLarge, "size_exceeded", "remote file exceeds the configured size limit")
	case errors.Is(err, cache.ErrInvalidName):
		return h.writeError(c, fiber.StatusBadRequest, "invalid_name", "derived artifact name is not usable")
	default:
		return h.writeError(c, fiber.StatusInternalServerError, "internal_error", "unexpected failure while fetching")
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func (h *Handler) logGenerate(url, artifact, requestID string, started time.Time, err error) {
	fields := logging.ArtifactFields("generate", artifact)
	fields["url"] = url
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("generate_failed")
		return
	}
	h.logger.WithFields(fields).Info("generate_complete")
}

func (h *Handler) logRetrieve(artifact, requestID string, started time.Time, touched bool, err error) {
	fields := logging.ArtifactFields("retrieve", artifact)
	fields["ttl_refreshed"] = touched
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("retrieve_failed")
		return
	}
	h.logger.WithFields(fields).Info("retrieve_complete")
}

// requestHost 返回原始 Host 头（含端口），生成的下载链接据此指回本服务。
func requestHost(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

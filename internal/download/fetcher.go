package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temp-link/temp-link/internal/cache"
	"github.com/temp-link/temp-link/internal/logging"
	"github.com/temp-link/temp-link/internal/version"
)

// Fetcher 负责一次性抓取：校验来源地址、流式写入暂存存储并登记注册表。
// 同一 URL 的并发抓取互不合并，各自产出独立工件。
type Fetcher struct {
	client     *http.Client
	store      cache.Store
	registry   *cache.Registry
	logger     *logrus.Logger
	maxRetries int
	backoff    time.Duration
}

// FetcherOptions 控制抓取器的依赖注入与重试行为。
type FetcherOptions struct {
	Client         *http.Client
	Store          cache.Store
	Registry       *cache.Registry
	Logger         *logrus.Logger
	MaxRetries     int
	InitialBackoff time.Duration
}

// NewFetcher 构造共享 http.Client 的抓取器。
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Fetcher{
		client:     opts.Client,
		store:      opts.Store,
		registry:   opts.Registry,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
		backoff:    backoff,
	}, nil
}

// Fetch 抓取 rawURL 指向的远端文件并落盘，返回实际写入的工件。
// 任何失败都不会留下磁盘残留，注册表也不会出现对应条目。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*cache.Artifact, error) {
	started := time.Now()

	source, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.doWithRetry(ctx, source)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	name := cache.SanitizeName(filenameFromResponse(resp, source))
	if cache.ValidateName(name) != nil {
		name = cache.FallbackName(rawURL)
	}

	artifact, err := f.store.Put(ctx, name, resp.Body)
	if err != nil {
		return nil, classifyBodyError(err)
	}

	f.registry.Put(artifact.Name)

	fields := logging.ArtifactFields("fetch", artifact.Name)
	fields["url"] = rawURL
	fields["size_bytes"] = artifact.SizeBytes
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	f.logger.WithFields(fields).Info("fetch_complete")

	return artifact, nil
}

// doWithRetry 对连接阶段的瞬时网络错误做有限次指数退避重试。
// 超时与取消立即放弃；正文读取阶段的错误不在此处处理。
func (f *Fetcher) doWithRetry(ctx context.Context, source *url.URL) (*http.Response, error) {
	backoff := f.backoff
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.String(), http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := f.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}

		f.logger.WithFields(logrus.Fields{
			"action":  "fetch_retry",
			"url":     source.String(),
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("fetch_retry")
	}

	return nil, lastErr
}

// parseSourceURL 要求来源必须是带 Host 的 http/https 绝对地址。
func parseSourceURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return parsed, nil
}

func isRetryable(err error) bool {
	if isTimeout(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyTransportError 把请求阶段的错误折叠进错误分类学。
func classifyTransportError(err error) error {
	switch {
	case err == nil:
		return nil
	case isTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

// classifyBodyError 处理写入阶段的错误：存储层哨兵与本地 IO 错误原样上抛，
// 读取上游正文的网络错误折叠为超时或上游失败。
func classifyBodyError(err error) error {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cache.ErrSizeExceeded), errors.Is(err, cache.ErrInvalidName):
		return err
	case isTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &pathErr):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/temp-link/temp-link/internal/cache"
	"github.com/temp-link/temp-link/internal/config"
	"github.com/temp-link/temp-link/internal/download"
	"github.com/temp-link/temp-link/internal/server"
	"github.com/temp-link/temp-link/internal/server/routes"
)

// serviceApp 以 main 的装配顺序组装完整服务，但通过 app.Test 驱动，
// 不监听真实端口。
type serviceApp struct {
	app      *fiber.App
	store    cache.Store
	registry *cache.Registry
	sweeper  *cache.Sweeper
	scratch  string
	ttl      time.Duration
}

func newServiceApp(t *testing.T, mutate func(*config.GlobalConfig)) *serviceApp {
	t.Helper()

	scratch := t.TempDir()
	cfg := &config.Config{
		Global: config.GlobalConfig{
			ListenPort:      5000,
			ScratchPath:     scratch,
			MaxArtifactSize: 1 << 20,
			ArtifactTTL:     config.Duration(30 * time.Minute),
			SweepInterval:   config.Duration(time.Minute),
			FetchTimeout:    config.Duration(5 * time.Second),
		},
	}
	if mutate != nil {
		mutate(&cfg.Global)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(cfg.Global.ScratchPath, cfg.Global.MaxArtifactSize)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	registry := cache.NewRegistry()
	client := server.NewFetchClient(cfg)

	fetcher, err := download.NewFetcher(download.FetcherOptions{
		Client:         client,
		Store:          store,
		Registry:       registry,
		Logger:         logger,
		MaxRetries:     cfg.Global.MaxFetchRetries,
		InitialBackoff: cfg.Global.InitialBackoff.DurationValue(),
	})
	if err != nil {
		t.Fatalf("fetcher error: %v", err)
	}

	ttl := cfg.Global.ArtifactTTL.DurationValue()
	handler := download.NewHandler(fetcher, store, registry, logger, ttl)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Links:      handler,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterStatusRoutes(app, routes.StatusOptions{
		Registry:        registry,
		ScratchPath:     cfg.Global.ScratchPath,
		TTL:             ttl,
		SweepInterval:   cfg.Global.SweepInterval.DurationValue(),
		MaxArtifactSize: cfg.Global.MaxArtifactSize,
		StartedAt:       time.Now(),
	})

	sweeper := cache.NewSweeper(store, registry, logger, cfg.Global.SweepInterval.DurationValue(), ttl)

	return &serviceApp{
		app:      app,
		store:    store,
		registry: registry,
		sweeper:  sweeper,
		scratch:  scratch,
		ttl:      ttl,
	}
}

func (s *serviceApp) generate(t *testing.T, fileURL string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://files.local:5000/generate",
		strings.NewReader(fmt.Sprintf(`{"file_url": %q}`, fileURL)))
	req.Host = "files.local:5000"
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

type generatedLink struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

func (s *serviceApp) generateOK(t *testing.T, fileURL string) generatedLink {
	t.Helper()
	resp := s.generate(t, fileURL)
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("generate failed with %d: %s", resp.StatusCode, string(body))
	}
	var link generatedLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	return link
}

func (s *serviceApp) download(t *testing.T, name string) *http.Response {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/download/"+name, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

func (s *serviceApp) scratchEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.scratch)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Error
}

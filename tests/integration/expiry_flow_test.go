package integration

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
)

func TestSweepEvictsIdleArtifacts(t *testing.T) {
	stub := newFileStub(t)
	defer stub.Close()
	stub.Add("/files/stale.bin", stubFile{Body: []byte("will expire")})

	svc := newServiceApp(t, nil)
	link := svc.generateOK(t, stub.URL+"/files/stale.bin")

	removed := svc.sweeper.Sweep(context.Background(), time.Now().Add(svc.ttl+time.Second))
	if removed != 1 {
		t.Fatalf("expected one eviction, got %d", removed)
	}

	resp := svc.download(t, link.Filename)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 after eviction, got %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, resp); code != "not_found" {
		t.Fatalf("expected not_found, got %q", code)
	}
	if entries := svc.scratchEntries(t); len(entries) != 0 {
		t.Fatalf("expected artifact removed from disk, got %v", entries)
	}
	if svc.registry.Len() != 0 {
		t.Fatalf("expected empty registry after sweep, got %d", svc.registry.Len())
	}
}

func TestDownloadExtendsArtifactLifetime(t *testing.T) {
	stub := newFileStub(t)
	defer stub.Close()
	stub.Add("/files/idle.bin", stubFile{Body: []byte("left alone")})
	stub.Add("/files/busy.bin", stubFile{Body: []byte("kept warm")})

	svc := newServiceApp(t, nil)
	idle := svc.generateOK(t, stub.URL+"/files/idle.bin")
	busy := svc.generateOK(t, stub.URL+"/files/busy.bin")

	// 下载 busy 刷新其最后访问时间，idle 保持生成时的时间戳。
	resp := svc.download(t, busy.Filename)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("warm-up download failed with %d", resp.StatusCode)
	}
	resp.Body.Close()

	var idleLast, busyLast time.Time
	for _, entry := range svc.registry.Snapshot() {
		switch entry.Name {
		case idle.Filename:
			idleLast = entry.LastAccess
		case busy.Filename:
			busyLast = entry.LastAccess
		}
	}
	if idleLast.IsZero() || busyLast.IsZero() {
		t.Fatalf("registry snapshot incomplete: %v", svc.registry.Snapshot())
	}
	if !busyLast.After(idleLast) {
		t.Fatalf("expected download to refresh last access, idle=%v busy=%v", idleLast, busyLast)
	}

	// 选取恰好淘汰 idle 而保留 busy 的时间点。
	sweepAt := idleLast.Add(svc.ttl + time.Nanosecond)
	removed := svc.sweeper.Sweep(context.Background(), sweepAt)
	if removed != 1 {
		t.Fatalf("expected exactly one eviction, got %d", removed)
	}

	if resp := svc.download(t, idle.Filename); resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected idle artifact evicted, got %d", resp.StatusCode)
	}
	resp = svc.download(t, busy.Filename)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected busy artifact to survive, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

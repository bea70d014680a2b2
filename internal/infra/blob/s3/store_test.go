package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"labbook/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 || s.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected identity %s %s", s.Driver(), s.Bucket())
	}
	payload := []byte(`{"pages":[],"runs":[]}`)
	info, err := s.Put(ctx, "backups/a.json", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"source": "test"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["source"] != "test" {
		t.Fatalf("metadata not round-tripped: %+v", info.Metadata)
	}

	if _, err := s.Put(ctx, "backups/a.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(body, payload) || got.Key != "backups/a.json" {
		t.Fatalf("get mismatch: %q %+v", body, got)
	}

	ok, err := s.Delete(ctx, "backups/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = s.Delete(ctx, "backups/a.json")
	if err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
}

func TestMockStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if _, err := s.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMockStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	s.pageSize = 2
	for _, k := range []string{"backups/3", "backups/1", "other/x", "backups/2", "backups/4", "backups/5"} {
		if _, err := s.Put(ctx, k, strings.NewReader(k), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	infos, err := s.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "backups/1,backups/2,backups/3,backups/4,backups/5" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	url, err := s.PresignURL(ctx, "backups/a.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "backups/a.json") || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

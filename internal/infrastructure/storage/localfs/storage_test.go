package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDeleteRoundtrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	body := "rental agreement bytes"
	if err := store.Save(ctx, "owner-1/doc-1_lease.pdf", strings.NewReader(body), int64(len(body)), "application/pdf"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(ctx, "owner-1/doc-1_lease.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatalf("roundtrip mismatch: %q", got)
	}

	url, err := store.PresignURL(ctx, "owner-1/doc-1_lease.pdf")
	if err != nil {
		t.Fatalf("PresignURL() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("expected file url, got %q", url)
	}

	if err := store.Delete(ctx, "owner-1/doc-1_lease.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Open(ctx, "owner-1/doc-1_lease.pdf"); err == nil {
		t.Fatalf("expected open to fail after delete")
	}
}

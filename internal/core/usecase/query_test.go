package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/expatdesk/docvault/internal/core/domain"
)

func newQueryFixture() (*QueryUseCase, *repoFake, *versionRepoFake) {
	repo := newRepoFake()
	versions := newVersionRepoFake(repo)
	uc := NewQueryUseCase(repo, versions, newStorageFake(), NewDuplicateDetector(repo), testLogger())
	return uc, repo, versions
}

func TestListAnnotatesVersionsAndDownloadURL(t *testing.T) {
	uc, repo, versions := newQueryFixture()
	anchor := seedDoc(repo, "anchor", "lease.pdf", "hash-a", 2*time.Hour)
	anchor.StoragePath = "owner-1/anchor_lease.pdf"
	revision := seedDoc(repo, "rev", "lease.pdf", "hash-b", time.Hour)
	revision.StoragePath = "owner-1/rev_lease.pdf"

	chain := NewVersionChainManager(versions)
	if _, err := chain.Link(context.Background(), "owner-1", "lease.pdf", "hash-b", "rev", ""); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	items, err := uc.List(context.Background(), "owner-1", domain.DocumentFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	byID := map[string]domain.DocumentListItem{}
	for _, item := range items {
		byID[item.ID] = item
	}
	if byID["anchor"].VersionCount != 2 {
		t.Fatalf("anchor version count = %d, want 2", byID["anchor"].VersionCount)
	}
	if byID["anchor"].VersionNumber != 0 {
		t.Fatalf("anchor is the original, must carry no own version number")
	}
	if byID["rev"].VersionNumber != 2 {
		t.Fatalf("revision version number = %d, want 2", byID["rev"].VersionNumber)
	}
	if byID["rev"].DownloadURL != "https://blob.test/owner-1/rev_lease.pdf" {
		t.Fatalf("unexpected download url %q", byID["rev"].DownloadURL)
	}
}

func TestListFiltersByTypeAndStatus(t *testing.T) {
	uc, repo, _ := newQueryFixture()
	lease := seedDoc(repo, "lease", "lease.pdf", "h1", time.Hour)
	lease.Type = domain.TypeRentalContract
	pay := seedDoc(repo, "pay", "payslip.pdf", "h2", time.Hour)
	pay.Type = domain.TypePayslip
	pay.Status = domain.StatusProcessing

	items, err := uc.List(context.Background(), "owner-1", domain.DocumentFilter{Type: domain.TypeRentalContract})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "lease" {
		t.Fatalf("type filter failed: %+v", items)
	}

	items, err = uc.List(context.Background(), "owner-1", domain.DocumentFilter{Status: domain.StatusProcessing})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "pay" {
		t.Fatalf("status filter failed: %+v", items)
	}
}

func TestGetHidesForeignDocuments(t *testing.T) {
	uc, repo, _ := newQueryFixture()
	foreign := seedDoc(repo, "doc-1", "lease.pdf", "h1", time.Hour)
	foreign.OwnerID = "someone-else"

	_, err := uc.Get(context.Background(), "owner-1", "doc-1")
	if err == nil || !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found for foreign document, got %v", err)
	}
}

func TestDeleteSoftDeletesAndExcludesFromListing(t *testing.T) {
	uc, repo, _ := newQueryFixture()
	seedDoc(repo, "doc-1", "lease.pdf", "h1", time.Hour)

	if err := uc.Delete(context.Background(), "owner-1", "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if repo.docs["doc-1"].DeletedAt == nil {
		t.Fatalf("expected soft-delete timestamp")
	}
	items, err := uc.List(context.Background(), "owner-1", domain.DocumentFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("deleted document must not be listed, got %+v", items)
	}
}

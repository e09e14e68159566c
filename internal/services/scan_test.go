package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/internal/testutil"
	"github.com/delvicier/fixagent/pkg/models"
	"github.com/google/uuid"
)

func newScanRepo(t *testing.T) services.ScanRepository {
	t.Helper()
	store := testutil.NewStore(t)
	repo, err := services.NewSQLiteScanRepository(context.Background(), store)
	if err != nil {
		t.Fatalf("NewSQLiteScanRepository: %v", err)
	}
	return repo
}

func TestSQLiteScanRepository_CreateAndGet(t *testing.T) {
	repo := newScanRepo(t)
	ctx := context.Background()

	scan := &models.ScanSession{
		ID:    uuid.New().String(),
		Mode:  "fast",
		Total: 509,
	}

	if err := repo.Create(ctx, scan); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if scan.StartedAt == "" {
		t.Error("StartedAt not set by Create")
	}

	got, err := repo.Get(ctx, scan.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Mode != "fast" {
		t.Errorf("Mode = %q, want %q", got.Mode, "fast")
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want %q", got.Status, "running")
	}
	if got.Total != 509 {
		t.Errorf("Total = %d, want 509", got.Total)
	}
	if got.EndedAt != "" {
		t.Errorf("EndedAt = %q, want empty", got.EndedAt)
	}
}

func TestSQLiteScanRepository_CreateGeneratesID(t *testing.T) {
	repo := newScanRepo(t)

	scan := &models.ScanSession{Mode: "deep"}
	if err := repo.Create(context.Background(), scan); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if scan.ID == "" {
		t.Error("Create did not generate an ID")
	}
}

func TestSQLiteScanRepository_GetNotFound(t *testing.T) {
	repo := newScanRepo(t)

	_, err := repo.Get(context.Background(), "nonexistent-id")
	if err != services.ErrNotFound {
		t.Errorf("Get nonexistent = %v, want ErrNotFound", err)
	}
}

func TestSQLiteScanRepository_Finish(t *testing.T) {
	repo := newScanRepo(t)
	ctx := context.Background()

	scan := &models.ScanSession{Mode: "fast", Total: 60}
	if err := repo.Create(ctx, scan); err != nil {
		t.Fatalf("Create: %v", err)
	}

	scan.Status = "connected"
	scan.FoundURL = "http://192.168.1.50:4000"
	scan.Probed = 60
	if err := repo.Finish(ctx, scan); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := repo.Get(ctx, scan.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "connected" {
		t.Errorf("Status = %q, want connected", got.Status)
	}
	if got.FoundURL != scan.FoundURL {
		t.Errorf("FoundURL = %q, want %q", got.FoundURL, scan.FoundURL)
	}
	if got.Probed != 60 {
		t.Errorf("Probed = %d, want 60", got.Probed)
	}
	if got.EndedAt == "" {
		t.Error("EndedAt is empty after Finish")
	}
}

func TestSQLiteScanRepository_FinishUnknown(t *testing.T) {
	repo := newScanRepo(t)

	err := repo.Finish(context.Background(), &models.ScanSession{ID: "missing", Status: "cancelled"})
	if err != services.ErrNotFound {
		t.Errorf("Finish unknown = %v, want ErrNotFound", err)
	}
}

func TestSQLiteScanRepository_ListPagination(t *testing.T) {
	repo := newScanRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		scan := &models.ScanSession{
			Mode:      "fast",
			StartedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
		}
		if err := repo.Create(ctx, scan); err != nil {
			t.Fatalf("Create scan %d: %v", i, err)
		}
	}

	result, err := repo.List(ctx, services.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Items) != 2 {
		t.Fatalf("Page 1 items = %d, want 2", len(result.Items))
	}
	// Newest first by default.
	if result.Items[0].StartedAt < result.Items[1].StartedAt {
		t.Errorf("default order not descending: %q before %q",
			result.Items[0].StartedAt, result.Items[1].StartedAt)
	}

	result, err = repo.List(ctx, services.ListOptions{Limit: 10, Offset: 5})
	if err != nil {
		t.Fatalf("List beyond end: %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("Beyond end items = %d, want 0", len(result.Items))
	}
}

func TestSQLiteScanRepository_ListEmpty(t *testing.T) {
	repo := newScanRepo(t)

	result, err := repo.List(context.Background(), services.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0", result.Total)
	}
	if result.Items == nil {
		t.Error("Items is nil, want empty slice")
	}
}

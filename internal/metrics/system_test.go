package metrics

import (
	"context"
	"testing"
)

func TestCollect(t *testing.T) {
	stats, err := Collect(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	t.Run("Memory", func(t *testing.T) {
		if stats.Memory.Total == 0 {
			t.Error("Memory total should not be 0")
		}
		if stats.Memory.Used > stats.Memory.Total {
			t.Error("Memory used should not exceed total")
		}
	})

	t.Run("Cores", func(t *testing.T) {
		if stats.Cores <= 0 {
			t.Errorf("Cores should be > 0, got %d", stats.Cores)
		}
	})

	t.Run("LoadAvg", func(t *testing.T) {
		if len(stats.LoadAvg) > 0 && len(stats.LoadAvg) != 3 {
			t.Errorf("LoadAvg should have 3 values, got %d", len(stats.LoadAvg))
		}
	})

	t.Run("Storage", func(t *testing.T) {
		if stats.Storage == nil {
			t.Skip("disk usage not available")
		}
		if stats.Storage.Total == 0 {
			t.Error("Storage total should not be 0")
		}
	})
}

func TestCollect_SkipsStorage(t *testing.T) {
	stats, err := Collect(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Storage != nil {
		t.Error("expected no storage stats")
	}
}

func TestCollect_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Collect(ctx, ""); err == nil {
		t.Error("expected error for canceled context")
	}
}

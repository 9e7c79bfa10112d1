package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("Expected debug mode to be enabled")
	}

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range AllCategories {
		path := filepath.Join(dir, date+"_"+string(cat)+".log")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("expected log file for %s: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "hello from "+string(cat)) {
			t.Errorf("log file for %s missing message, got: %s", cat, data)
		}
	}
}

func TestProductionModeIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	t.Cleanup(CloseAll)

	if err := Initialize(dir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	l := Get(CategoryDialogue)
	if l.Enabled() {
		t.Error("expected no-op logger in production mode")
	}
	l.Info("dropped")

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("logs directory should not be created in production mode")
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)

	opts := Options{
		DebugMode:  true,
		Categories: map[string]bool{"dialogue": true, "store": false},
	}
	if err := Initialize(dir, opts); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsCategoryEnabled(CategoryDialogue) {
		t.Error("dialogue should be enabled")
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Error("store should be disabled")
	}
	if !IsCategoryEnabled(CategorySession) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(dir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	SessionDebug("debug-line")
	SessionWarn("warn-line")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_session.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "debug-line") {
		t.Error("debug line should be filtered at warn level")
	}
	if !strings.Contains(string(data), "warn-line") {
		t.Error("warn line missing")
	}
}

func TestConcurrentGet(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(dir, Options{DebugMode: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	got := make([]*Logger, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(CategoryPerception)
			got[i].Debug("worker %d", i)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Fatal("expected a single cached logger per category")
		}
	}
}

func TestTimer(t *testing.T) {
	timer := StartTimer(CategoryDialogue, "op")
	time.Sleep(time.Millisecond)
	if d := timer.StopWithThreshold(time.Hour); d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}
}

func TestInitializeRequiresDir(t *testing.T) {
	if err := Initialize("", Options{}); err == nil {
		t.Error("expected error for empty directory")
	}
}

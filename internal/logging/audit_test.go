package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAudit(t *testing.T, dir string) []map[string]interface{} {
	t.Helper()
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+"_audit.log")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("audit line is not JSON: %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestAuditTrail(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(CloseAll)

	// Audit lines stay JSON even with console-format category logs.
	if err := Initialize(dir, Options{DebugMode: true, Level: "info"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	a := AuditWithSession("s1")
	a.SessionStart("u1")
	a.TaskStarted("CONTRACT_CREATION")
	a.TaskCompleted("CONTRACT_CREATION", []string{"ACCOUNT_NUMBER", "TITLE"})
	Audit().Log(AuditEvent{EventType: AuditTaskCancel, SessionID: "s2", Task: "CONTRACT_CREATION", Reason: "user"})
	a.SessionEnd(4)
	CloseAll()

	lines := readAudit(t, dir)
	if len(lines) != 5 {
		t.Fatalf("expected 5 audit lines, got %d", len(lines))
	}
	wantEvents := []AuditEventType{AuditSessionStart, AuditTaskStart, AuditTaskComplete, AuditTaskCancel, AuditSessionEnd}
	for i, want := range wantEvents {
		if got := lines[i]["event"]; got != string(want) {
			t.Errorf("line %d: event = %v, want %s", i, got, want)
		}
		if _, ok := lines[i]["ts"]; !ok {
			t.Errorf("line %d: missing ts", i)
		}
	}
	if lines[0]["session"] != "s1" || lines[0]["user"] != "u1" {
		t.Errorf("session start fields wrong: %v", lines[0])
	}
	if fields, ok := lines[2]["fields"].([]interface{}); !ok || len(fields) != 2 {
		t.Errorf("task complete fields wrong: %v", lines[2])
	}
	if lines[3]["session"] != "s2" || lines[3]["reason"] != "user" {
		t.Errorf("explicit event fields wrong: %v", lines[3])
	}
	if lines[4]["turns"] != float64(4) {
		t.Errorf("session end turns wrong: %v", lines[4])
	}
}

func TestAuditDisabledOutsideDebugMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	t.Cleanup(CloseAll)

	if err := Initialize(dir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	AuditWithSession("s1").TaskStarted("CONTRACT_CREATION")

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("audit log should not be created in production mode")
	}
}

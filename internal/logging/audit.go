package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names a conversation lifecycle event.
type AuditEventType string

const (
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"

	AuditTaskStart    AuditEventType = "task_start"
	AuditTaskComplete AuditEventType = "task_complete"
	AuditTaskCancel   AuditEventType = "task_cancel"
	AuditTaskAbandon  AuditEventType = "task_abandon"
	AuditTaskReset    AuditEventType = "task_reset"

	AuditTurnPanic AuditEventType = "turn_panic"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	EventType AuditEventType
	SessionID string
	Task      string // task kind, when the event concerns one
	Reason    string
	Fields    map[string]interface{}
}

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditLog  *zap.Logger
)

// InitAudit opens <logs dir>/<date>_audit.log. Audit events are JSON lines
// regardless of the configured log format. A no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}
	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.LevelKey = ""
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)

	auditFile = f
	auditLog = zap.New(core)
	return nil
}

// CloseAudit flushes and closes the audit log.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLog != nil {
		_ = auditLog.Sync()
		auditLog = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger writes audit events, optionally scoped to a session.
type AuditLogger struct {
	sessionID string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger { return &AuditLogger{} }

// AuditWithSession returns an audit logger scoped to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes e. Dropped when the audit log is closed.
func (a *AuditLogger) Log(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLog == nil {
		return
	}
	if e.SessionID == "" {
		e.SessionID = a.sessionID
	}

	fields := make([]zap.Field, 0, 3+len(e.Fields))
	fields = append(fields, zap.String("session", e.SessionID))
	if e.Task != "" {
		fields = append(fields, zap.String("task", e.Task))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	auditLog.Info(string(e.EventType), fields...)
}

func (a *AuditLogger) SessionStart(userID string) {
	a.Log(AuditEvent{EventType: AuditSessionStart, Fields: map[string]interface{}{"user": userID}})
}

func (a *AuditLogger) SessionEnd(turns int) {
	a.Log(AuditEvent{EventType: AuditSessionEnd, Fields: map[string]interface{}{"turns": turns}})
}

func (a *AuditLogger) TaskStarted(kind string) {
	a.Log(AuditEvent{EventType: AuditTaskStart, Task: kind})
}

// TaskCompleted records only which fields were collected, never their values.
func (a *AuditLogger) TaskCompleted(kind string, fields []string) {
	a.Log(AuditEvent{EventType: AuditTaskComplete, Task: kind, Fields: map[string]interface{}{"fields": fields}})
}

func (a *AuditLogger) TaskCancelled(kind, reason string) {
	a.Log(AuditEvent{EventType: AuditTaskCancel, Task: kind, Reason: reason})
}

func (a *AuditLogger) TaskAbandoned(kind, reason string) {
	a.Log(AuditEvent{EventType: AuditTaskAbandon, Task: kind, Reason: reason})
}

func (a *AuditLogger) TaskReset(kind string) {
	a.Log(AuditEvent{EventType: AuditTaskReset, Task: kind, Reason: "unknown task kind"})
}

func (a *AuditLogger) TurnPanic(recovered interface{}) {
	a.Log(AuditEvent{EventType: AuditTurnPanic, Reason: fmt.Sprint(recovered)})
}

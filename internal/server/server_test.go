package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contractbot/internal/dialogue"
	"contractbot/internal/perception"
	"contractbot/internal/session"
	"contractbot/internal/store"
	"contractbot/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDeleter struct {
	deleted []string
	err     error
}

func (d *fakeDeleter) Delete(id string) error {
	d.deleted = append(d.deleted, id)
	return d.err
}

type failingHistory struct{}

func (failingHistory) History(context.Context, string, int) ([]store.TurnRecord, error) {
	return nil, errors.New("disk on fire")
}

func newTestRouter(t *testing.T, history HistorySource, del SessionDeleter, opts ...dialogue.Option) (*gin.Engine, *dialogue.Manager) {
	t.Helper()
	st := session.NewMemoryStore(4, 10*time.Minute)
	m := dialogue.NewManager(st, task.DefaultRegistry(), opts...)
	return NewRouter(NewHandlers(m, history, del), "contractbot-test", false), m
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestHandleTurn(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)

	w := do(t, r, http.MethodPost, "/v1/turn", TurnRequest{Text: "create contract", SessionID: "s1", UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dialogue.Response](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, dialogue.RoleNewTask, resp.Metadata.Role)
	assert.Equal(t, session.PhaseCollecting, resp.Data.Phase)

	w = do(t, r, http.MethodPost, "/v1/turn", TurnRequest{Text: "1000585412", SessionID: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[dialogue.Response](t, w)
	assert.Equal(t, dialogue.RoleAccountInput, resp.Metadata.Role)
	assert.Equal(t, "CONTRACT_NAME", resp.Data.CurrentField)
}

func TestHandleTurn_GeneratesSessionID(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	w := do(t, r, http.MethodPost, "/v1/turn", TurnRequest{Text: "show contracts"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[dialogue.Response](t, w).SessionID)
}

func TestHandleTurn_InvalidRequests(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"turn missing text", "/v1/turn", map[string]string{"sessionId": "s1"}},
		{"turn blank text", "/v1/turn", TurnRequest{Text: "   "}},
		{"classify blank", "/v1/classify", TextRequest{Text: "\t"}},
		{"extract missing", "/v1/extract", map[string]string{}},
		{"choices empty", "/v1/sessions/s1/choices", ChoicesRequest{}},
		{"choice without label", "/v1/sessions/s1/choices", ChoicesRequest{Choices: []ChoiceRequest{{Value: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandleClassify(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	w := do(t, r, http.MethodPost, "/v1/classify", TextRequest{Text: "1000578963"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[perception.Analysis](t, w)
	assert.Equal(t, perception.QueryCustomers, resp.Classification.QueryType)
	assert.Equal(t, perception.ActionCustomersByNumber, resp.Classification.ActionType)
	assert.Equal(t, "1000578963", resp.Original)
}

func TestHandleExtract(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)

	w := do(t, r, http.MethodPost, "/v1/extract", TextRequest{Text: "contract 123456"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ExtractResponse](t, w)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, perception.AttrContractNumber, resp.Entities[0].Attribute)
	assert.Equal(t, "123456", resp.Entities[0].Value)

	w = do(t, r, http.MethodPost, "/v1/extract", TextRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entities":[]}`, w.Body.String())
}

func TestHandleOfferChoices(t *testing.T) {
	r, m := newTestRouter(t, nil, nil)

	w := do(t, r, http.MethodPost, "/v1/sessions/s1/choices", ChoicesRequest{
		UserID: "u1",
		Prompt: "Which user?",
		Choices: []ChoiceRequest{
			{Label: "John Smith", Value: "contracts created by jsmith"},
			{Label: "Jane Doe", Value: "contracts created by jdoe"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	cs := decode[session.ChoiceSet](t, w)
	assert.Equal(t, "Which user?", cs.Prompt)
	require.Len(t, cs.Options, 2)
	assert.Equal(t, 2, cs.Options[1].Number)

	resp := m.ProcessTurn(context.Background(), "2", "s1", "u1")
	assert.Equal(t, dialogue.RoleSelection, resp.Metadata.Role)
	assert.Equal(t, perception.ActionContractsByUser, resp.Metadata.ActionType)
}

func TestHandleEndSession(t *testing.T) {
	del := &fakeDeleter{err: errors.New("ignored")}
	r, m := newTestRouter(t, nil, del)

	w := do(t, r, http.MethodDelete, "/v1/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	m.ProcessTurn(context.Background(), "create contract", "s1", "u1")
	w = do(t, r, http.MethodDelete, "/v1/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"s1"}, del.deleted)

	_, ok := m.Session("s1")
	assert.False(t, ok)
}

func TestHandleHistory_FromSession(t *testing.T) {
	r, m := newTestRouter(t, nil, nil)

	w := do(t, r, http.MethodGet, "/v1/sessions/nope/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, text := range []string{"create contract", "1000585412", "Test Contract"} {
		m.ProcessTurn(context.Background(), text, "s1", "u1")
	}

	w = do(t, r, http.MethodGet, "/v1/sessions/s1/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HistoryResponse](t, w)
	assert.Equal(t, "session", resp.Source)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "1000585412", resp.Turns[0].Input)
	assert.Equal(t, "Test Contract", resp.Turns[1].Input)
	require.NotNil(t, resp.Task)
	assert.Len(t, resp.Task.Collected, 2)

	w = do(t, r, http.MethodGet, "/v1/sessions/s1/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodGet, "/v1/sessions/s1/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory_FromTurnLog(t *testing.T) {
	log, err := store.OpenTurnLog(store.DriverPure, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	r, m := newTestRouter(t, log, nil, dialogue.WithTurnRecorder(log))
	for i := 0; i < 3; i++ {
		m.ProcessTurn(context.Background(), fmt.Sprintf("show contracts for customer 10005854%d", i), "s1", "u1")
	}
	// Dropping the live session keeps the persisted turns reachable.
	m.EndSession("s1")

	w := do(t, r, http.MethodGet, "/v1/sessions/s1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HistoryResponse](t, w)
	assert.Equal(t, "turnlog", resp.Source)
	require.Len(t, resp.Records, 3)
	assert.Equal(t, 1, resp.Records[0].TurnNumber)
	assert.Equal(t, "show contracts for customer 100058540", resp.Records[0].Input)
	assert.Nil(t, resp.Task)

	w = do(t, r, http.MethodGet, "/v1/sessions/other/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHistory_StoreError(t *testing.T) {
	r, m := newTestRouter(t, failingHistory{}, nil)
	m.ProcessTurn(context.Background(), "show contracts", "s1", "u1")

	w := do(t, r, http.MethodGet, "/v1/sessions/s1/history", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "STORE_ERROR", decode[ErrorResponse](t, w).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	do(t, r, http.MethodPost, "/v1/turn", TurnRequest{Text: "show parts", SessionID: "m1"})

	w = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `contractbot_http_requests_total{route="/v1/turn",status="200"}`)
	assert.Contains(t, body, "contractbot_dialogue_turns_total")
}

func TestServer_ServeAndShutdown(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(ln.Addr().String(), r, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return srv.Serve(ctx, ln) })

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, g.Wait())
}

func TestServer_RunReportsListenError(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(ln.Addr().String(), r, time.Second)
	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

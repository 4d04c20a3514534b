package api

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"synthesistalk/internal/config"
	"synthesistalk/internal/models"
	"synthesistalk/internal/service/ai"
	"synthesistalk/internal/service/chat"
	"synthesistalk/internal/service/document"
	"synthesistalk/internal/service/export"
	"synthesistalk/internal/service/history"
	"synthesistalk/internal/service/notes"
	"synthesistalk/internal/service/prompt"
	"synthesistalk/internal/service/reasoning"
	"synthesistalk/internal/service/tools"
	"synthesistalk/internal/storage"
	"synthesistalk/internal/worker"
)

func TestHandlersEndToEndFlow(t *testing.T) {
	srv := newTestServer(t)
	router := srv.router

	rootResp := doJSONRequest(t, router, http.MethodGet, "/", nil, nil)
	assertStatus(t, rootResp, http.StatusOK)
	var rootBody struct {
		Message string `json:"message"`
	}
	decodeJSON(t, rootResp.Body.Bytes(), &rootBody)
	if rootBody.Message != "SynthesisTalk backend is running" {
		t.Fatalf("unexpected root message %q", rootBody.Message)
	}

	// Chat message round trip.
	srv.model.push("Quantum entanglement links the states of two particles.")
	chatResp := doJSONRequest(t, router, http.MethodPost, "/chat/message", map[string]string{
		"user_id": "alice",
		"message": "What is quantum entanglement?",
	}, nil)
	assertStatus(t, chatResp, http.StatusOK)
	var chatBody struct {
		Reply   string   `json:"reply"`
		History []string `json:"history"`
	}
	decodeJSON(t, chatResp.Body.Bytes(), &chatBody)
	if chatBody.Reply != "Quantum entanglement links the states of two particles." {
		t.Fatalf("unexpected reply %q", chatBody.Reply)
	}
	if len(chatBody.History) != 2 || chatBody.History[0] != "What is quantum entanglement?" {
		t.Fatalf("unexpected history %v", chatBody.History)
	}

	// A short search query is completed with the conversation topic.
	srv.search.resp = &ai.SearchResponse{Results: []models.SearchResult{
		{Title: "Entanglement explained", URL: "https://example.com/e", Snippet: "Spooky action"},
	}}
	srv.model.push("Entanglement is well studied.")
	searchResp := doJSONRequest(t, router, http.MethodPost, "/tools/use", map[string]string{
		"tool_name":  "search",
		"input_text": "more",
		"user_id":    "alice",
	}, nil)
	assertStatus(t, searchResp, http.StatusOK)
	var searchBody struct {
		Result string `json:"result"`
	}
	decodeJSON(t, searchResp.Body.Bytes(), &searchBody)
	if !strings.HasPrefix(searchBody.Result, "🧠 Summary:\nEntanglement is well studied.") {
		t.Fatalf("unexpected search result %q", searchBody.Result)
	}
	if !strings.Contains(searchBody.Result, "https://example.com/e") {
		t.Fatalf("expected sources in search result %q", searchBody.Result)
	}
	if got := srv.search.lastQuery(); got != "more quantum entanglement" {
		t.Fatalf("unexpected search query %q", got)
	}
	if n := countHistory(t, srv.db, "alice"); n != 4 {
		t.Fatalf("expected 4 history rows after tool use, got %d", n)
	}

	// Notes.
	for _, note := range []string{"first", "second"} {
		resp := doFormRequest(t, router, "/tools/note/save", url.Values{"user_id": {"alice"}, "note": {note}})
		assertStatus(t, resp, http.StatusOK)
	}
	listResp := doJSONRequest(t, router, http.MethodGet, "/tools/note/list?user_id=alice", nil, nil)
	assertStatus(t, listResp, http.StatusOK)
	assertNotes(t, listResp, "first", "second")

	delResp := doFormRequest(t, router, "/tools/note/delete", url.Values{"user_id": {"alice"}, "index": {"0"}})
	assertStatus(t, delResp, http.StatusOK)
	assertNotes(t, delResp, "second")

	outOfRange := doFormRequest(t, router, "/tools/note/delete", url.Values{"user_id": {"alice"}, "index": {"7"}})
	assertStatus(t, outOfRange, http.StatusOK)
	assertNotes(t, outOfRange, "second")

	clearResp := doFormRequest(t, router, "/tools/note/clear", url.Values{"user_id": {"alice"}})
	assertStatus(t, clearResp, http.StatusOK)
	assertNotes(t, clearResp)

	// Topic titles never touch history.
	srv.model.push(`Title: "Quantum Entanglement"`)
	topicResp := doJSONRequest(t, router, http.MethodPost, "/tools/generate_topic", map[string]string{
		"conversation_text": "user: what is quantum entanglement?",
	}, nil)
	assertStatus(t, topicResp, http.StatusOK)
	var topicBody struct {
		Topic string `json:"topic"`
	}
	decodeJSON(t, topicResp.Body.Bytes(), &topicBody)
	if topicBody.Topic != "Quantum Entanglement" {
		t.Fatalf("unexpected topic %q", topicBody.Topic)
	}
	if n := countHistory(t, srv.db, "alice"); n != 4 {
		t.Fatalf("topic generation changed history: %d rows", n)
	}

	// Reset.
	resetResp := doJSONRequest(t, router, http.MethodPost, "/tools/convo/reset", map[string]string{"user_id": "alice"}, nil)
	assertStatus(t, resetResp, http.StatusOK)
	var resetBody struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resetResp.Body.Bytes(), &resetBody)
	if resetBody.Status != "conversation reset" {
		t.Fatalf("unexpected reset status %q", resetBody.Status)
	}
	if n := countHistory(t, srv.db, "alice"); n != 0 {
		t.Fatalf("expected empty history after reset, got %d", n)
	}
}

func TestConvenienceEndpointsDoNotRecordHistory(t *testing.T) {
	srv := newTestServer(t)

	srv.model.push(`Here you go: [{"label":"Solar","count":3},{"label":"Wind","count":"2"}]`)
	visResp := doJSONRequest(t, srv.router, http.MethodPost, "/tools/visualize", map[string]string{
		"input_text": "renewable energy",
		"user_id":    "bob",
	}, nil)
	assertStatus(t, visResp, http.StatusOK)
	var visBody struct {
		ChartData []models.VisualDatum `json:"chart_data"`
	}
	decodeJSON(t, visResp.Body.Bytes(), &visBody)
	if len(visBody.ChartData) != 2 || visBody.ChartData[0].Label != "Solar" || visBody.ChartData[1].Count != 2 {
		t.Fatalf("unexpected chart data %+v", visBody.ChartData)
	}

	srv.model.push("Draft answer.", "Clear answer.", "No")
	qaResp := doJSONRequest(t, srv.router, http.MethodPost, "/tools/qa", map[string]string{
		"input_text": "Why is the sky blue?",
		"user_id":    "bob",
	}, nil)
	assertStatus(t, qaResp, http.StatusOK)
	var qaBody struct {
		Result string `json:"result"`
	}
	decodeJSON(t, qaResp.Body.Bytes(), &qaBody)
	if qaBody.Result != "Clear answer." {
		t.Fatalf("unexpected qa result %q", qaBody.Result)
	}

	if n := countHistory(t, srv.db, "bob"); n != 0 {
		t.Fatalf("convenience endpoints wrote %d history rows", n)
	}
}

func TestExportEndpointWritesPDF(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/tools/export", map[string]string{
		"input_text": "Findings about renewable energy.",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if !strings.HasSuffix(body.Result.FilePath, ".pdf") {
		t.Fatalf("unexpected file path %q", body.Result.FilePath)
	}
	if _, err := os.Stat(body.Result.FilePath); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
}

func TestUseToolUnknownName(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/tools/use", map[string]string{
		"tool_name":  "teleport",
		"input_text": "anything",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Result struct {
			Error string `json:"error"`
		} `json:"result"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Result.Error != "Invalid tool name" {
		t.Fatalf("unexpected result %s", resp.Body.String())
	}
}

func TestUploadDocument(t *testing.T) {
	srv := newTestServer(t)

	srv.model.push("A short report on solar power.")
	resp := doUpload(t, srv.router, "alice", "report.docx", buildDocx(t, "Solar power report"))
	assertStatus(t, resp, http.StatusOK)
	var body models.UploadResult
	decodeJSON(t, resp.Body.Bytes(), &body)
	if !body.Success || body.FileName != "report.docx" || body.FileType != ".docx" {
		t.Fatalf("unexpected upload result %+v", body)
	}
	if body.ExtractedContent != "Solar power report" {
		t.Fatalf("unexpected extracted content %q", body.ExtractedContent)
	}
	if body.Summary != "A short report on solar power." {
		t.Fatalf("unexpected summary %q", body.Summary)
	}
	if n := countHistory(t, srv.db, "alice"); n != 1 {
		t.Fatalf("expected upload recorded in history, got %d rows", n)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	srv := newTestServer(t)

	resp := doUpload(t, srv.router, "alice", "photo.png", []byte("not a document"))
	assertStatus(t, resp, http.StatusBadRequest)
	var body struct {
		Error    string `json:"error"`
		Filename string `json:"filename"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Filename != "photo.png" || !strings.Contains(body.Error, ".pdf, .docx, .doc") {
		t.Fatalf("unexpected error payload %s", resp.Body.String())
	}
	if srv.model.callCount() != 0 {
		t.Fatalf("unsupported upload reached the model")
	}
}

func TestUploadPanicAnswersServerError(t *testing.T) {
	srv := newTestServer(t)
	engine := reasoning.NewEngine(srv.model, srv.search, reasoning.Options{})
	chatService := chat.NewService(history.NewStore(srv.db, nil), prompt.NewSelector(prompt.DefaultWindow), engine, panicExtractor{})
	jobs := worker.NewDispatcher(worker.DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4})
	t.Cleanup(jobs.Stop)
	router := gin.New()
	NewHandler(chatService, srv.tools, srv.notes, jobs).RegisterRoutes(router)

	resp := doUpload(t, router, "alice", "broken.pdf", []byte("%PDF-1.4 garbage"))
	assertStatus(t, resp, http.StatusInternalServerError)
	if n := countHistory(t, srv.db, "alice"); n != 0 {
		t.Fatalf("failed upload recorded %d history rows", n)
	}
}

type panicExtractor struct{}

func (panicExtractor) Extract(context.Context, []byte, string) (string, error) {
	panic("malformed xref table")
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]string{"user_id": "alice"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/tools/convo/reset", map[string]string{}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	var resetBody struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp.Body.Bytes(), &resetBody)
	if resetBody.Error != "Missing user_id" {
		t.Fatalf("unexpected reset error %q", resetBody.Error)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/tools/note/list", nil, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doFormRequest(t, srv.router, "/tools/note/delete", url.Values{"user_id": {"alice"}, "index": {"first"}})
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestBusyRunnerAnswersTooManyRequests(t *testing.T) {
	srv := newTestServer(t)
	handler := NewHandler(srv.chat, srv.tools, srv.notes, busyRunner{})
	router := gin.New()
	handler.RegisterRoutes(router)

	resp := doJSONRequest(t, router, http.MethodPost, "/chat/message", map[string]string{
		"user_id": "alice",
		"message": "hello",
	}, nil)
	assertStatus(t, resp, http.StatusTooManyRequests)
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Error != "server is busy, please retry" {
		t.Fatalf("unexpected busy error %q", body.Error)
	}
}

type busyRunner struct{}

func (busyRunner) Do(context.Context, string, func(ctx context.Context) error) error {
	return worker.ErrDispatcherBusy
}

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *scriptedModel) push(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *scriptedModel) Complete(_ context.Context, _ models.ContextBundle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.replies) == 0 {
		return "", &ai.GatewayError{Gateway: "model", Op: "complete", Err: errors.New("no reply scripted")}
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}

type stubSearch struct {
	mu      sync.Mutex
	resp    *ai.SearchResponse
	queries []string
}

func (s *stubSearch) Query(_ context.Context, query string) (*ai.SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.resp == nil {
		return &ai.SearchResponse{}, nil
	}
	return s.resp, nil
}

func (s *stubSearch) lastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

type testServer struct {
	router *gin.Engine
	db     *sql.DB
	model  *scriptedModel
	search *stubSearch
	chat   *chat.Service
	tools  *tools.Service
	notes  *notes.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: ":memory:"}}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	exporter, err := export.NewExporter(t.TempDir())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	extractor, err := document.NewExtractor(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	model := &scriptedModel{}
	search := &stubSearch{}
	engine := reasoning.NewEngine(model, search, reasoning.Options{})
	selector := prompt.NewSelector(prompt.DefaultWindow)
	historyStore := history.NewStore(db, nil)
	noteStore := notes.NewStore(db)
	chatService := chat.NewService(historyStore, selector, engine, extractor)
	toolService := tools.NewService(historyStore, selector, tools.NewDispatcher(engine, exporter))

	jobs := worker.NewDispatcher(worker.DispatcherConfig{MinWorkers: 1, MaxWorkers: 4, QueueSize: 16, IdleTimeout: time.Minute})
	t.Cleanup(jobs.Stop)

	router := gin.New()
	NewHandler(chatService, toolService, noteStore, jobs).RegisterRoutes(router)
	return &testServer{
		router: router,
		db:     db,
		model:  model,
		search: search,
		chat:   chatService,
		tools:  toolService,
		notes:  noteStore,
	}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doFormRequest(t *testing.T, router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, router *gin.Engine, userID, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_id", userID); err != nil {
		t.Fatalf("write user_id: %v", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/tools/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func buildDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func assertNotes(t *testing.T, rec *httptest.ResponseRecorder, want ...string) {
	t.Helper()
	var body struct {
		Notes []string `json:"notes"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if len(body.Notes) != len(want) {
		t.Fatalf("unexpected notes %v, want %v", body.Notes, want)
	}
	for i := range want {
		if body.Notes[i] != want[i] {
			t.Fatalf("unexpected notes %v, want %v", body.Notes, want)
		}
	}
}

func countHistory(t *testing.T, db *sql.DB, userID string) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM history_messages WHERE user_id = ?`, userID).Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	return count
}

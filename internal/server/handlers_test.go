package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-form-rag/internal/config"
	"pdf-form-rag/internal/embedding"
	"pdf-form-rag/internal/models"
	"pdf-form-rag/internal/rag"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("<form id=\"f%d\"></form>", g.calls), nil
}

// textExtractor reads uploads as plain text; "broken.pdf" fails like an unreadable PDF.
func textExtractor(docs []models.Document) (string, error) {
	parts := make([]string, 0, len(docs))
	for i, d := range docs {
		if d.Name == "broken.pdf" {
			return "", &models.ExtractionError{Document: i, Name: d.Name, Err: errors.New("malformed PDF")}
		}
		parts = append(parts, string(d.Data))
	}
	return strings.Join(parts, "\n"), nil
}

func newTestServer(t *testing.T, gen *stubGenerator) (*Server, http.Handler) {
	t.Helper()
	cfg := config.RAGConfig{ChunkSize: 40, ChunkOverlap: 10, Separator: "\n", TopK: 2, EmbeddingConcurrency: 2}
	r := rag.NewRAG(embedding.NewMockEmbedder(64), gen, cfg, rag.WithExtractor(textExtractor))
	srv := NewServer(r, &config.ServerConfig{Host: "localhost", Port: 8080, MaxUploadMB: 1})
	return srv, srv.Router()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var out sessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func uploadRequest(t *testing.T, id string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func askRequest(id, question string) *http.Request {
	body, _ := json.Marshal(questionRequest{Question: question})
	return httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/questions", bytes.NewReader(body))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out["error"]
}

const manual = "Step 1: Install the pump.\nStep 2: Configure the valve.\nStep 3: Test the filter."

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t, &stubGenerator{})
	createSession(t, h)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 1, out["sessions"])
}

func TestCreateSession(t *testing.T) {
	srv, h := newTestServer(t, &stubGenerator{})
	before := time.Now()

	w := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var out sessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))

	session, ok := srv.sessions.Get(out.SessionID)
	require.True(t, ok)
	assert.True(t, session.CreatedAt.Equal(out.CreatedAt))
	assert.WithinDuration(t, before, out.CreatedAt, time.Minute)
}

func TestUploadAskHistory(t *testing.T) {
	_, h := newTestServer(t, &stubGenerator{})
	id := createSession(t, h)

	w := do(t, h, uploadRequest(t, id, map[string]string{"manual.pdf": manual}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up uploadResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&up))
	assert.Equal(t, 1, up.Documents)
	assert.Equal(t, 3, up.Chunks)
	assert.Equal(t, 64, up.Dimension)

	w = do(t, h, askRequest(id, "configure steps"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ans answerResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ans))
	assert.Equal(t, `<form id="f1"></form>`, ans.Answer)
	assert.Equal(t, "configure steps", ans.Question)
	assert.NotEmpty(t, ans.Sources)

	w = do(t, h, askRequest(id, "  test steps  "))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var hist historyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	assert.Equal(t, "oldest", hist.Order)
	require.Len(t, hist.Turns, 4)
	assert.Equal(t, models.Turn{Role: models.RoleHuman, Content: "configure steps"}, hist.Turns[0])
	assert.Equal(t, models.Turn{Role: models.RoleAI, Content: `<form id="f2"></form>`}, hist.Turns[3])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history?order=newest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	require.Len(t, hist.Turns, 4)
	assert.Equal(t, models.Turn{Role: models.RoleAI, Content: `<form id="f2"></form>`}, hist.Turns[0])
	assert.Equal(t, models.Turn{Role: models.RoleHuman, Content: "test steps"}, hist.Turns[1])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history?order=random", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskBeforeUpload(t *testing.T) {
	gen := &stubGenerator{}
	_, h := newTestServer(t, gen)
	id := createSession(t, h)

	w := do(t, h, askRequest(id, "what do I install?"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "upload PDF documents first", errorMessage(t, w))
	assert.Zero(t, gen.calls)
}

func TestUploadErrors(t *testing.T) {
	_, h := newTestServer(t, &stubGenerator{})
	id := createSession(t, h)

	w := do(t, h, uploadRequest(t, id, map[string]string{"broken.pdf": "%PDF-garbage"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorMessage(t, w), "broken.pdf")

	w = do(t, h, uploadRequest(t, id, map[string]string{"blank.pdf": ""}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, uploadRequest(t, id, map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/documents", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := strings.Repeat("x", 2<<20)
	w = do(t, h, uploadRequest(t, id, map[string]string{"huge.pdf": big}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAskErrors(t *testing.T) {
	gen := &stubGenerator{}
	_, h := newTestServer(t, gen)
	id := createSession(t, h)
	require.Equal(t, http.StatusOK, do(t, h, uploadRequest(t, id, map[string]string{"manual.pdf": manual})).Code)

	w := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/questions", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, askRequest(id, "   "))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	gen.err = errors.New("model unavailable")
	w = do(t, h, askRequest(id, "install?"))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history", nil))
	var hist historyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	assert.Empty(t, hist.Turns)
}

func TestUnknownAndDeletedSession(t *testing.T) {
	_, h := newTestServer(t, &stubGenerator{})

	w := do(t, h, askRequest("missing", "hello"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := createSession(t, h)
	w = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	_, h := newTestServer(t, &stubGenerator{})
	a := createSession(t, h)
	b := createSession(t, h)
	assert.NotEqual(t, a, b)

	require.Equal(t, http.StatusOK, do(t, h, uploadRequest(t, a, map[string]string{"manual.pdf": manual})).Code)
	require.Equal(t, http.StatusOK, do(t, h, askRequest(a, "install?")).Code)

	w := do(t, h, askRequest(b, "install?"))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no index", &models.GenerationError{Stage: models.StageRetrieve, Err: models.ErrNoIndex}, http.StatusConflict},
		{"busy", models.ErrConcurrentExchange, http.StatusConflict},
		{"extraction", &models.ExtractionError{Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{"empty corpus", models.ErrEmptyCorpus, http.StatusUnprocessableEntity},
		{"embedding", &models.EmbeddingError{Position: 2, Err: errors.New("down")}, http.StatusBadGateway},
		{"generation", &models.GenerationError{Stage: models.StageGenerate, Err: errors.New("down")}, http.StatusBadGateway},
		{"deadline", &models.GenerationError{Stage: models.StageGenerate, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workload-predictor/backend/config"
	"workload-predictor/backend/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubPredictor records how it was called and whether the temp upload
// actually existed at call time.
type stubPredictor struct {
	calls       int
	lastPath    string
	pathExisted bool
	raw         json.RawMessage
	err         error
}

func (s *stubPredictor) Predict(_ context.Context, filePath, _ string) (json.RawMessage, error) {
	s.calls++
	s.lastPath = filePath
	_, statErr := os.Stat(filePath)
	s.pathExisted = statErr == nil
	return s.raw, s.err
}

func testRouter(t *testing.T, stub *stubPredictor) *gin.Engine {
	t.Helper()
	cfg := &config.Config{UploadDir: t.TempDir()}
	return NewRouter(NewHandler(stub, cfg))
}

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestPredictMissingFile(t *testing.T) {
	stub := &stubPredictor{}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
	assert.Equal(t, 0, stub.calls, "upstream must not be invoked")
}

func TestPredictWrongFieldName(t *testing.T) {
	stub := &stubPredictor{}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "attachment", "data.csv", "a\n1\n"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
	assert.Equal(t, 0, stub.calls)
}

func TestPredictSuccess(t *testing.T) {
	const result = `{"summary":{"total_windows":2,"class_distribution":{"0":2}}}`
	stub := &stubPredictor{raw: json.RawMessage(result)}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "file", "data.csv", "a\n1\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, result, rec.Body.String(), "raw result passes through verbatim")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, 1, stub.calls)
	assert.True(t, stub.pathExisted, "temp upload must exist while predicting")
	assert.NoFileExists(t, stub.lastPath, "temp upload must be deleted afterwards")
}

func TestPredictUploadFieldAlias(t *testing.T) {
	stub := &stubPredictor{raw: json.RawMessage(`{}`)}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "upload", "data.csv", "a\n1\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.calls)
}

func TestPredictStillQueued(t *testing.T) {
	stub := &stubPredictor{err: services.ErrStillQueued}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "file", "data.csv", "a\n1\n"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"queued":true,"message":"Prediction queued, try again later"}`, rec.Body.String())
	assert.NoFileExists(t, stub.lastPath)
}

func TestPredictUpstreamError(t *testing.T) {
	stub := &stubPredictor{err: &services.UpstreamError{Message: "model exploded"}}
	router := testRouter(t, stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "file", "data.csv", "a\n1\n"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"model exploded"}`, rec.Body.String())
	assert.NoFileExists(t, stub.lastPath, "temp upload must be deleted on the error path too")
}

func TestPredictMethodNotAllowed(t *testing.T) {
	router := testRouter(t, &stubPredictor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predict", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	router := testRouter(t, &stubPredictor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

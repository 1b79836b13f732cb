package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/phambaophuc/image-compressor/internal/services/compressor"
	"github.com/phambaophuc/image-compressor/internal/services/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	cache     map[string]models.CompressedImage
	jobs      map[string]models.ProcessingJob
	uploadErr error
	health    map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		objects: map[string][]byte{},
		cache:   map[string]models.CompressedImage{},
		jobs:    map[string]models.ProcessingJob{},
		health:  map[string]string{"redis": models.HealthHealthy, "supabase": models.HealthHealthy},
	}
}

func (m *memoryStorage) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	key := "compressed/" + filename
	m.objects[key] = data
	return "https://storage.example.com/" + key, nil
}

func (m *memoryStorage) UploadMultiple(ctx context.Context, images []*models.CompressedImage) ([]string, error) {
	urls := make([]string, len(images))
	var failed int
	for i, img := range images {
		if img == nil {
			continue
		}
		url, err := m.Upload(ctx, img.Data, img.Filename, img.MIMEType)
		if err != nil {
			failed++
			continue
		}
		urls[i] = url
	}
	if failed > 0 {
		return urls, fmt.Errorf("failed to upload %d files", failed)
	}
	return urls, nil
}

func (m *memoryStorage) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("failed to download %s: not found", path)
	}
	return data, nil
}

func (m *memoryStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("failed to delete %s: not found", path)
	}
	delete(m.objects, path)
	return nil
}

func (m *memoryStorage) GetCompressed(ctx context.Context, cacheKey string) (*models.CompressedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.cache[cacheKey]
	if !ok {
		return nil, nil
	}
	return &img, nil
}

func (m *memoryStorage) SetCompressed(ctx context.Context, cacheKey string, img *models.CompressedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey] = *img
	return nil
}

func (m *memoryStorage) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, storage.ErrJobNotFound
	}
	return &job, nil
}

func (m *memoryStorage) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"db_keys": len(m.cache)}, nil
}

func (m *memoryStorage) HealthCheck(ctx context.Context) map[string]string {
	status := make(map[string]string, len(m.health))
	for k, v := range m.health {
		status[k] = v
	}
	return status
}

type memoryQueue struct {
	published  []*models.ProcessingJob
	publishErr error
}

func (q *memoryQueue) PublishJob(ctx context.Context, job *models.ProcessingJob) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, job)
	return nil
}

func (q *memoryQueue) GetQueueStats() (map[string]interface{}, error) {
	return map[string]interface{}{"messages": len(q.published)}, nil
}

func (q *memoryQueue) HealthCheck() string {
	return models.HealthHealthy
}

type countingCompressor struct {
	*compressor.Compressor
	calls int
}

func (c *countingCompressor) Compress(src *models.SourceImage, constraints models.Constraints) (*models.CompressedImage, error) {
	c.calls++
	return c.Compressor.Compress(src, constraints)
}

type harness struct {
	engine     *gin.Engine
	storage    *memoryStorage
	queue      *memoryQueue
	compressor *countingCompressor
}

func newHarness(t *testing.T, withQueue bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Storage:     config.StorageConfig{MaxFileSize: 1 << 20},
		Compression: config.CompressionConfig{MaxSizeKB: 200, MaxWidth: 100, MaxHeight: 100},
	}

	h := &harness{
		storage:    newMemoryStorage(),
		compressor: &countingCompressor{Compressor: compressor.New()},
	}

	var queue JobQueue
	if withQueue {
		h.queue = &memoryQueue{}
		queue = h.queue
	}

	handler := NewImageHandler(h.compressor, h.storage, queue, zap.NewNop(), cfg)

	engine := gin.New()
	engine.GET("/health", handler.HealthCheck)
	engine.GET("/stats", handler.GetStats)
	engine.POST("/images/compress", handler.CompressImage)
	engine.POST("/images/batch/compress", handler.BatchCompress)
	engine.POST("/images/jobs", handler.CreateJob)
	engine.GET("/images/jobs/:id", handler.GetJob)
	engine.GET("/files/*path", handler.GetImage)
	engine.DELETE("/files/*path", handler.DeleteImage)
	h.engine = engine

	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

type part struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, url string, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		w, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data interface{}) models.APIResponse {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return models.APIResponse{Success: envelope.Success, Error: envelope.Error}
}

func TestCompressImageReturnsBytes(t *testing.T) {
	h := newHarness(t, false)
	req := multipartRequest(t, "/images/compress",
		[]part{{field: "image", filename: "banner.png", contentType: "image/png", data: pngImage(t, 400, 200)}}, nil)

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "100", w.Header().Get("X-Compression-Width"))
	assert.Equal(t, "50", w.Header().Get("X-Compression-Height"))
	assert.Equal(t, "1", w.Header().Get("X-Compression-Attempts"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="banner.png"`)

	decoded, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), decoded.Bounds())
}

func TestCompressImageHonoursFormConstraints(t *testing.T) {
	h := newHarness(t, false)
	req := multipartRequest(t, "/images/compress",
		[]part{{field: "image", filename: "banner.png", contentType: "image/png", data: pngImage(t, 400, 200)}},
		map[string]string{"max_width": "40", "max_size_kb": "50"})

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "40", w.Header().Get("X-Compression-Width"))
	assert.Equal(t, "20", w.Header().Get("X-Compression-Height"))
}

func TestCompressImageSniffsGenericContentType(t *testing.T) {
	h := newHarness(t, false)
	req := multipartRequest(t, "/images/compress",
		[]part{{field: "image", filename: "upload.bin", contentType: "application/octet-stream", data: pngImage(t, 10, 10)}}, nil)

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestCompressImageReturnURL(t *testing.T) {
	h := newHarness(t, false)
	req := multipartRequest(t, "/images/compress?return_url=true",
		[]part{{field: "image", filename: "banner.png", contentType: "image/png", data: pngImage(t, 400, 200)}}, nil)

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.ImageResponse
	resp := decodeResponse(t, w, &got)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://storage.example.com/compressed/banner.png", got.URL)
	assert.Equal(t, "banner.png", got.Filename)
	assert.Equal(t, 100, got.Width)
	assert.Contains(t, h.storage.objects, "compressed/banner.png")
}

func TestCompressImageUsesCache(t *testing.T) {
	h := newHarness(t, false)
	data := pngImage(t, 40, 40)

	first := h.do(multipartRequest(t, "/images/compress",
		[]part{{field: "image", filename: "a.png", contentType: "image/png", data: data}}, nil))
	second := h.do(multipartRequest(t, "/images/compress",
		[]part{{field: "image", filename: "b.png", contentType: "image/png", data: data}}, nil))

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, h.compressor.calls)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Contains(t, second.Header().Get("Content-Disposition"), `filename="b.png"`)
}

func TestCompressImageErrors(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		parts      []part
		fields     map[string]string
		wantStatus int
	}{
		{
			name:       "missing file",
			url:        "/images/compress",
			fields:     map[string]string{"max_width": "10"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad max_width",
			url:        "/images/compress",
			parts:      []part{{field: "image", filename: "a.png", contentType: "image/png", data: []byte("x")}},
			fields:     map[string]string{"max_width": "-4"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad max_size_kb",
			url:        "/images/compress",
			parts:      []part{{field: "image", filename: "a.png", contentType: "image/png", data: []byte("x")}},
			fields:     map[string]string{"max_size_kb": "lots"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad return_url",
			url:        "/images/compress?return_url=maybe",
			parts:      []part{{field: "image", filename: "a.png", contentType: "image/png", data: []byte("x")}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an image",
			url:        "/images/compress",
			parts:      []part{{field: "image", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")}},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "undecodable image",
			url:        "/images/compress",
			parts:      []part{{field: "image", filename: "broken.png", contentType: "image/png", data: []byte("not really a png")}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "too large",
			url:        "/images/compress",
			parts:      []part{{field: "image", filename: "huge.png", contentType: "image/png", data: make([]byte, 1<<20+1)}},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)

			w := h.do(multipartRequest(t, tt.url, tt.parts, tt.fields))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decodeResponse(t, w, nil)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCompressImageUploadUnavailable(t *testing.T) {
	h := newHarness(t, false)
	h.storage.uploadErr = storage.ErrStorageNotConfigured

	w := h.do(multipartRequest(t, "/images/compress?return_url=1",
		[]part{{field: "image", filename: "a.png", contentType: "image/png", data: pngImage(t, 10, 10)}}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBatchCompress(t *testing.T) {
	h := newHarness(t, false)
	req := multipartRequest(t, "/images/batch/compress", []part{
		{field: "images", filename: "one.png", contentType: "image/png", data: pngImage(t, 300, 150)},
		{field: "images", filename: "huge.png", contentType: "image/png", data: make([]byte, 1<<20+1)},
		{field: "images", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		{field: "images", filename: "two.png", contentType: "image/png", data: pngImage(t, 20, 20)},
	}, nil)

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.BatchResponse
	resp := decodeResponse(t, w, &got)
	assert.False(t, resp.Success)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 2, got.Failed)

	require.Len(t, got.Images, 4)
	assert.Equal(t, "one.png", got.Images[0].Filename)
	assert.Equal(t, 100, got.Images[0].Width)
	assert.Equal(t, "https://storage.example.com/compressed/one.png", got.Images[0].URL)
	assert.Equal(t, "huge.png", got.Images[1].Filename)
	assert.Contains(t, got.Images[1].Error, "file too large")
	assert.Equal(t, "notes.txt", got.Images[2].Filename)
	assert.Contains(t, got.Images[2].Error, "invalid input")
	assert.Equal(t, "two.png", got.Images[3].Filename)
	assert.Equal(t, 20, got.Images[3].Width)
}

func TestBatchCompressWithoutImages(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(multipartRequest(t, "/images/batch/compress", nil, map[string]string{"max_width": "10"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchCompressTooManyImages(t *testing.T) {
	h := newHarness(t, false)
	parts := make([]part, maxBatchFiles+1)
	for i := range parts {
		parts[i] = part{field: "images", filename: fmt.Sprintf("%d.png", i), contentType: "image/png", data: []byte("x")}
	}

	w := h.do(multipartRequest(t, "/images/batch/compress", parts, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs(t *testing.T) {
	h := newHarness(t, true)

	body := `{"image_url":"https://cdn.example.com/cat.png","constraints":{"max_size_kb":80}}`
	req := httptest.NewRequest(http.MethodPost, "/images/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job models.ProcessingJob
	decodeResponse(t, w, &job)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, 80.0, job.Constraints.MaxSizeKB)
	require.Len(t, h.queue.published, 1)

	h.storage.jobs[job.ID] = job
	w = h.do(httptest.NewRequest(http.MethodGet, "/images/jobs/"+job.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/images/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobErrors(t *testing.T) {
	valid := `{"image_url":"https://cdn.example.com/cat.png"}`

	tests := []struct {
		name       string
		withQueue  bool
		publishErr error
		body       string
		wantStatus int
	}{
		{name: "queue unavailable", withQueue: false, body: valid, wantStatus: http.StatusServiceUnavailable},
		{name: "missing url", withQueue: true, body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "invalid url", withQueue: true, body: `{"image_url":"not a url"}`, wantStatus: http.StatusBadRequest},
		{name: "negative bound", withQueue: true, body: `{"image_url":"https://x.io/a.png","constraints":{"max_width":-1}}`, wantStatus: http.StatusBadRequest},
		{name: "publish fails", withQueue: true, publishErr: errors.New("channel closed"), body: valid, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.withQueue)
			if h.queue != nil {
				h.queue.publishErr = tt.publishErr
			}

			req := httptest.NewRequest(http.MethodPost, "/images/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			assert.Equal(t, tt.wantStatus, h.do(req).Code)
		})
	}
}

func TestGetAndDeleteImage(t *testing.T) {
	h := newHarness(t, false)
	data := pngImage(t, 4, 4)
	h.storage.objects["compressed/a_1_abcd1234.png"] = data

	w := h.do(httptest.NewRequest(http.MethodGet, "/files/compressed/a_1_abcd1234.png", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, data, w.Body.Bytes())

	w = h.do(httptest.NewRequest(http.MethodDelete, "/files/compressed/a_1_abcd1234.png", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, h.storage.objects)

	w = h.do(httptest.NewRequest(http.MethodDelete, "/files/compressed/a_1_abcd1234.png", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/files/compressed/a_1_abcd1234.png", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = h.do(httptest.NewRequest(http.MethodDelete, "/files/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchCompressReportsUploadFailures(t *testing.T) {
	h := newHarness(t, false)
	h.storage.uploadErr = storage.ErrStorageNotConfigured

	w := h.do(multipartRequest(t, "/images/batch/compress", []part{
		{field: "images", filename: "one.png", contentType: "image/png", data: pngImage(t, 30, 30)},
	}, nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.BatchResponse
	decodeResponse(t, w, &got)
	require.Len(t, got.Images, 1)
	assert.Equal(t, 1, got.Succeeded)
	assert.Empty(t, got.Images[0].URL)
	assert.Equal(t, 30, got.Images[0].Width)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health models.HealthCheck
	resp := decodeResponse(t, w, &health)
	assert.True(t, resp.Success)
	assert.Equal(t, models.HealthHealthy, health.Status)
	assert.Equal(t, models.HealthNotConfigured, health.Services["rabbitmq"])

	h.storage.health["redis"] = models.HealthUnhealthy + ": connection refused"
	w = h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetStats(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]interface{}
	decodeResponse(t, w, &stats)
	assert.Contains(t, stats, "cache")
	assert.Contains(t, stats, "queue")
	assert.Contains(t, stats, "defaults")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: text/plain", compressor.ErrInvalidInput), http.StatusUnsupportedMediaType},
		{fmt.Errorf("%w: bad header", compressor.ErrDecode), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: quality 0.90", compressor.ErrEncode), http.StatusInternalServerError},
		{compressor.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{storage.ErrJobNotFound, http.StatusNotFound},
		{storage.ErrStorageNotConfigured, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

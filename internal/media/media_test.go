package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + aws.ToString(in.Key)}, nil
}

func TestS3Store_Put(t *testing.T) {
	up := &fakeUploader{}
	s := newS3Store(up, "scents", "")
	url, err := s.Put(context.Background(), "items/a/1.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/items/a/1.jpg", url)
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "scents", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(up.inputs[0].ContentType))

	s = newS3Store(up, "scents", "https://cdn.example.com/")
	url, err = s.Put(context.Background(), "items/a/2.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/items/a/2.jpg", url)

	up.err = errors.New("denied")
	_, err = s.Put(context.Background(), "k", "image/png", bytes.NewReader(nil))
	assert.Error(t, err)
}

type memStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, ctype := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write([]byte("data"))
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func makeApp(store Store) (*fiber.App, *catalog.Service) {
	items := catalog.NewService(catalog.NewInMemoryRepository([]catalog.Item{
		{ID: "a", Name: "Royal Oud", Price: decimal.NewFromInt(500), Category: "Oud", Images: []string{"one.jpg", "two.jpg", "three.jpg"}},
		{ID: "b", Name: "Rose Petal", Price: decimal.NewFromInt(1000), Category: "Rose"},
	}))
	app := fiber.New()
	NewHandler(store, items, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAdminRoutes(app.Group("/api/v1/admin"))
	return app, items
}

func TestUploadImages(t *testing.T) {
	store := &memStore{}
	app, items := makeApp(store)

	body, ctype := multipartBody(t, map[string]string{"front.JPG": "image/jpeg", "notes.txt": "text/plain"})
	req := httptest.NewRequest("POST", "/api/v1/admin/items/b/images", body)
	req.Header.Set("Content-Type", ctype)
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var out struct {
		URLs   []string `json:"urls"`
		Failed []string `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out.URLs, 1)
	assert.Regexp(t, `^https://cdn\.example\.com/items/b/.+\.jpg$`, out.URLs[0])
	assert.Equal(t, []string{"notes.txt"}, out.Failed)

	it, err := items.GetByID(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, out.URLs, it.Images)
}

func TestUploadImages_Limits(t *testing.T) {
	app, _ := makeApp(&memStore{})

	body, ctype := multipartBody(t, map[string]string{"x.png": "image/png", "y.png": "image/png"})
	req := httptest.NewRequest("POST", "/api/v1/admin/items/a/images", body)
	req.Header.Set("Content-Type", ctype)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body, ctype = multipartBody(t, map[string]string{"x.png": "image/png"})
	req = httptest.NewRequest("POST", "/api/v1/admin/items/zzz/images", body)
	req.Header.Set("Content-Type", ctype)
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestUploadImages_Disabled(t *testing.T) {
	app, _ := makeApp(nil)
	req := httptest.NewRequest("POST", "/api/v1/admin/items/a/images", nil)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, res.StatusCode)
}

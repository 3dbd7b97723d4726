package attachments

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/workorder"
)

type fakeGateway struct {
	mu        sync.Mutex
	items     []workorder.Attachment
	signErr   map[string]error
	signCalls int
	uploaded  []byte
	uploadCT  string
	uploadErr error
}

func (g *fakeGateway) FetchAttachments(context.Context, string, uuid.UUID) ([]workorder.Attachment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]workorder.Attachment(nil), g.items...), nil
}

func (g *fakeGateway) SignURL(_ context.Context, _ string, path string, expiresIn time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signCalls++
	if err := g.signErr[path]; err != nil {
		return "", err
	}
	return "https://cdn.example/" + path + "?ttl=" + expiresIn.String(), nil
}

func (g *fakeGateway) UploadAttachment(_ context.Context, _ string, woID uuid.UUID, data []byte, contentType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return "", g.uploadErr
	}
	g.uploaded = data
	g.uploadCT = contentType
	return woID.String() + "/photo.jpg", nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newService(t *testing.T, gw Gateway, opts Options) *Service {
	t.Helper()
	s, err := NewService(gw, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestList_SignsAndCachesURLs(t *testing.T) {
	woID := uuid.New()
	gw := &fakeGateway{items: []workorder.Attachment{
		{ID: uuid.New(), WorkOrderID: woID, StoragePath: woID.String() + "/a.jpg"},
		{ID: uuid.New(), WorkOrderID: woID, StoragePath: woID.String() + "/b.jpg"},
	}}
	s := newService(t, gw, Options{})

	items, err := s.List(context.Background(), "tok", woID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://cdn.example/"+woID.String()+"/a.jpg?ttl=1h0m0s", items[0].SignedURL)
	assert.Equal(t, 2, gw.signCalls)

	again, err := s.List(context.Background(), "tok", woID)
	require.NoError(t, err)
	assert.Equal(t, items, again)
	assert.Equal(t, 2, gw.signCalls, "second listing served from cache")
}

func TestList_FailedSigningLeavesURLEmpty(t *testing.T) {
	woID := uuid.New()
	bad := woID.String() + "/missing.jpg"
	gw := &fakeGateway{
		items: []workorder.Attachment{
			{ID: uuid.New(), StoragePath: bad},
			{ID: uuid.New(), StoragePath: woID.String() + "/ok.jpg"},
		},
		signErr: map[string]error{bad: apperr.New(apperr.Transport, "404")},
	}
	s := newService(t, gw, Options{})

	items, err := s.List(context.Background(), "tok", woID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Empty(t, items[0].SignedURL)
	assert.NotEmpty(t, items[1].SignedURL)
}

func TestUpload_DownscalesAndEncodesJPEG(t *testing.T) {
	gw := &fakeGateway{}
	s := newService(t, gw, Options{MaxDimension: 400})

	woID := uuid.New()
	path, err := s.Upload(context.Background(), "tok", woID, pngBytes(t, 1600, 800))
	require.NoError(t, err)
	assert.Equal(t, woID.String()+"/photo.jpg", path)
	assert.Equal(t, "image/jpeg", gw.uploadCT)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(gw.uploaded))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestPrepare_SmallImageKeepsSize(t *testing.T) {
	s := newService(t, &fakeGateway{}, Options{})

	out, err := s.Prepare(pngBytes(t, 64, 32))
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestPrepare_RejectsNonImages(t *testing.T) {
	s := newService(t, &fakeGateway{}, Options{})

	tests := map[string][]byte{
		"empty": nil,
		"text":  []byte("just some notes"),
		"pdf":   []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Prepare(data)
			assert.True(t, apperr.Is(err, apperr.InvalidInput), "err = %v", err)
		})
	}
}

func TestUploadFile(t *testing.T) {
	gw := &fakeGateway{}
	s := newService(t, gw, Options{})

	dir := t.TempDir()
	photo := filepath.Join(dir, "meter.png")
	require.NoError(t, os.WriteFile(photo, pngBytes(t, 10, 10), 0o644))

	_, err := s.UploadFile(context.Background(), "tok", uuid.New(), photo)
	require.NoError(t, err)
	assert.NotEmpty(t, gw.uploaded)

	_, err = s.UploadFile(context.Background(), "tok", uuid.New(), filepath.Join(dir, "nope.png"))
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestUpload_PropagatesGatewayError(t *testing.T) {
	gw := &fakeGateway{uploadErr: apperr.New(apperr.Transport, "quota")}
	s := newService(t, gw, Options{})

	_, err := s.Upload(context.Background(), "tok", uuid.New(), pngBytes(t, 10, 10))
	assert.True(t, apperr.Is(err, apperr.Transport))
}

// Package attachments lists and uploads work-order photos.
//
// Listing signs each object for download. Signed URLs are cached in memory
// until shortly before they expire, so flipping between work orders does not
// re-sign every photo. A photo that cannot be signed is still listed, with an
// empty URL.
//
// Uploads are sniffed, rejected unless they are images, downscaled to the
// configured bound and re-encoded as JPEG.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/logging"
	"github.com/five82/fieldtech/internal/workorder"
)

// Gateway is the part of the backend this package uses.
type Gateway interface {
	FetchAttachments(ctx context.Context, token string, workOrderID uuid.UUID) ([]workorder.Attachment, error)
	SignURL(ctx context.Context, token, storagePath string, expiresIn time.Duration) (string, error)
	UploadAttachment(ctx context.Context, token string, workOrderID uuid.UUID, data []byte, contentType string) (string, error)
}

const (
	defaultSignTTL      = time.Hour
	signRefreshMargin   = 5 * time.Minute
	defaultMaxDimension = 2048
	jpegQuality         = 80
	maxUploadBytes      = 25 << 20
)

var acceptedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff"}

// Options tunes a Service.
type Options struct {
	// MaxDimension bounds the longer side of uploaded photos. Zero uses the
	// default; a negative value disables resizing.
	MaxDimension int
	SignTTL      time.Duration
	Logger       logrus.FieldLogger
}

// Service lists and uploads attachments through a Gateway.
type Service struct {
	gateway Gateway
	urls    *ristretto.Cache
	signTTL time.Duration
	maxDim  int
	logger  logrus.FieldLogger
}

// NewService builds a Service with its signed URL cache.
func NewService(gw Gateway, opts Options) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
		// Each URL costs 1; do not count struct overhead against MaxCost.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create signed url cache: %w", err)
	}

	s := &Service{
		gateway: gw,
		urls:    cache,
		signTTL: opts.SignTTL,
		maxDim:  opts.MaxDimension,
		logger:  logging.OrDiscard(opts.Logger).WithField("component", "attachments"),
	}
	if s.signTTL <= signRefreshMargin {
		s.signTTL = defaultSignTTL
	}
	if s.maxDim == 0 {
		s.maxDim = defaultMaxDimension
	}
	return s, nil
}

// Close releases the cache.
func (s *Service) Close() {
	s.urls.Close()
}

// List returns the work order's attachments, newest first, with signed URLs.
func (s *Service) List(ctx context.Context, token string, workOrderID uuid.UUID) ([]workorder.Attachment, error) {
	items, err := s.gateway.FetchAttachments(ctx, token, workOrderID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SignedURL = s.signedURL(ctx, token, items[i].StoragePath)
	}
	return items, nil
}

func (s *Service) signedURL(ctx context.Context, token, path string) string {
	if cached, ok := s.urls.Get(path); ok {
		if u, ok := cached.(string); ok {
			return u
		}
	}
	u, err := s.gateway.SignURL(ctx, token, path, s.signTTL)
	if err != nil {
		s.logger.WithError(err).WithField("storage_path", path).Warn("could not sign attachment")
		return ""
	}
	s.urls.SetWithTTL(path, u, 1, s.signTTL-signRefreshMargin)
	s.urls.Wait()
	return u
}

// Upload prepares data as a JPEG and uploads it. It returns the storage path.
func (s *Service) Upload(ctx context.Context, token string, workOrderID uuid.UUID, data []byte) (string, error) {
	prepared, err := s.Prepare(data)
	if err != nil {
		return "", err
	}
	path, err := s.gateway.UploadAttachment(ctx, token, workOrderID, prepared, "image/jpeg")
	if err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"work_order_id": workOrderID,
		"storage_path":  path,
		"bytes":         len(prepared),
	}).Info("attachment uploaded")
	return path, nil
}

// UploadFile reads a photo from disk and uploads it.
func (s *Service) UploadFile(ctx context.Context, token string, workOrderID uuid.UUID, filename string) (string, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, "open photo", err)
	}
	if info.Size() > maxUploadBytes {
		return "", apperr.Newf(apperr.InvalidInput, "photo is %d bytes, limit is %d", info.Size(), maxUploadBytes)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, "read photo", err)
	}
	return s.Upload(ctx, token, workOrderID, data)
}

// Prepare validates data as an image and returns it JPEG encoded, scaled so
// neither side exceeds the configured maximum.
func (s *Service) Prepare(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "photo is empty")
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), acceptedTypes...) {
		return nil, apperr.Newf(apperr.InvalidInput, "unsupported attachment type %s", mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "decode photo", err)
	}
	img = s.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "encode photo", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) fit(img image.Image) image.Image {
	if s.maxDim < 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= s.maxDim && b.Dy() <= s.maxDim {
		return img
	}
	return imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)
}

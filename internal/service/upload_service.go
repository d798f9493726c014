package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imgupload/internal/domain"
	"imgupload/internal/metrics"
	"imgupload/internal/repository"
	"imgupload/internal/settings"
	"imgupload/pkg/utils"
)

type UploadService interface {
	// HandleUpload stores an uploaded image and its thumbnail. Uploads whose
	// declared content type is not an image are ignored: the result is nil
	// and nothing is written.
	HandleUpload(ctx context.Context, upload domain.Upload, st settings.Settings) (*domain.Result, error)
	// ThumbnailFor regenerates the thumbnail of an original already in the images directory.
	ThumbnailFor(ctx context.Context, name string, st settings.Settings) (*domain.Result, error)
	// RebuildThumbnails regenerates every thumbnail in the images directory.
	RebuildThumbnails(ctx context.Context, st settings.Settings) (int, error)
}

type uploadService struct {
	fs      afero.Fs
	mirror  repository.Mirror
	proc    *utils.ImageProcessor
	metrics *metrics.Metrics
	log     *zap.Logger
	letter  LetterSource
	now     func() time.Time
}

// NewUploadService works on the images directory inside fs. mirror may be nil.
func NewUploadService(fs afero.Fs, mirror repository.Mirror, proc *utils.ImageProcessor, m *metrics.Metrics, log *zap.Logger) UploadService {
	return &uploadService{
		fs:      fs,
		mirror:  mirror,
		proc:    proc,
		metrics: m,
		log:     log,
		letter:  randomLetter,
		now:     time.Now,
	}
}

func (s *uploadService) HandleUpload(ctx context.Context, upload domain.Upload, st settings.Settings) (*domain.Result, error) {
	// The declared type comes from the client; decoding below is the real check.
	if !strings.Contains(upload.ContentType, "image") {
		s.metrics.Uploads.WithLabelValues(metrics.ResultIgnored).Inc()
		s.log.Info("Ignoring non-image upload",
			zap.String("filename", upload.Filename),
			zap.String("content_type", upload.ContentType))
		return nil, nil
	}

	result, err := s.handleImage(ctx, upload, st)
	if err != nil {
		s.metrics.Uploads.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, err
	}
	s.metrics.Uploads.WithLabelValues(metrics.ResultStored).Inc()
	return result, nil
}

func (s *uploadService) handleImage(ctx context.Context, upload domain.Upload, st settings.Settings) (*domain.Result, error) {
	filename, err := CleanFilename(upload.Filename)
	if err != nil {
		return nil, err
	}
	dir, err := s.directory(st)
	if err != nil {
		return nil, err
	}

	name, err := s.storeOriginal(ctx, dir, filename, upload.Data)
	if err != nil {
		return nil, err
	}
	s.metrics.BytesWritten.Add(float64(len(upload.Data)))

	if err := ctx.Err(); err != nil {
		s.log.Warn("Upload cancelled before thumbnail, original kept",
			zap.String("dir", dir.Path()), zap.String("name", name))
		return nil, err
	}

	thumbName := ThumbName(name)
	thumb, thumbData, err := s.writeThumbnail(dir, name, thumbName, st)
	if err != nil {
		// The original stays on disk without a thumbnail.
		s.log.Warn("Thumbnail failed, original kept without thumbnail",
			zap.String("dir", dir.Path()),
			zap.String("name", name),
			zap.Error(err))
		return nil, err
	}

	s.mirrorFile(ctx, name, upload.Data, upload.ContentType)
	s.mirrorFile(ctx, thumbName, thumbData, "image/"+thumb.Format)

	result, err := s.result(st, name, thumbName, thumb)
	if err != nil {
		return nil, err
	}
	result.Size = int64(len(upload.Data))
	result.ContentType = upload.ContentType

	s.log.Info("Image uploaded successfully",
		zap.String("filename", upload.Filename),
		zap.String("name", name),
		zap.String("thumb_name", thumbName),
		zap.Int("size", len(upload.Data)),
		zap.Int("thumb_width", thumb.Width),
		zap.Int("thumb_height", thumb.Height))

	return result, nil
}

func (s *uploadService) ThumbnailFor(ctx context.Context, name string, st settings.Settings) (*domain.Result, error) {
	name, err := CleanFilename(name)
	if err != nil {
		return nil, err
	}
	dir, err := s.directory(st)
	if err != nil {
		return nil, err
	}
	existing, err := dir.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	if isThumbnail(name, existing) {
		return nil, fmt.Errorf("%w: %q is the thumbnail of another file", domain.ErrInvalidFilename, name)
	}
	return s.regenerate(ctx, dir, name, st)
}

func (s *uploadService) regenerate(ctx context.Context, dir repository.ImageDirectory, name string, st settings.Settings) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thumbName := ThumbName(name)
	thumb, thumbData, err := s.writeThumbnail(dir, name, thumbName, st)
	if err != nil {
		return nil, err
	}
	s.mirrorFile(ctx, thumbName, thumbData, "image/"+thumb.Format)

	return s.result(st, name, thumbName, thumb)
}

func (s *uploadService) RebuildThumbnails(ctx context.Context, st settings.Settings) (int, error) {
	dir, err := s.directory(st)
	if err != nil {
		return 0, err
	}
	existing, err := dir.List()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}

	names := make([]string, 0, len(existing))
	for name := range existing {
		if !isThumbnail(name, existing) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var (
		rebuilt int
		errs    []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if _, err := s.regenerate(ctx, dir, name, st); err != nil {
			s.log.Error("Failed to rebuild thumbnail",
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		rebuilt++
	}

	s.log.Info("Thumbnails rebuilt",
		zap.String("dir", dir.Path()),
		zap.Int("rebuilt", rebuilt),
		zap.Int("failed", len(errs)))

	return rebuilt, errors.Join(errs...)
}

// isThumbnail reports whether name is the "_tn" sibling of another listed file.
func isThumbnail(name string, existing map[string]struct{}) bool {
	base, ext := SplitName(name)
	original, ok := strings.CutSuffix(base, thumbSuffix)
	if !ok {
		return false
	}
	_, found := existing[original+ext]
	return found
}

func (s *uploadService) directory(st settings.Settings) (repository.ImageDirectory, error) {
	if st.ImagesDirectory == "" {
		return nil, domain.ErrNotConfigured
	}
	dir, err := repository.NewImageDirectory(s.fs, st.ImagesDirectory, s.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	return dir, nil
}

// storeOriginal resolves a free name against the directory listing and
// creates it exclusively. A create that loses a race marks the name taken
// and resolves again.
func (s *uploadService) storeOriginal(ctx context.Context, dir repository.ImageDirectory, filename string, data []byte) (string, error) {
	existing, err := dir.List()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	// A name is taken when either it or its thumbnail sibling exists, so a
	// new thumbnail never replaces an unrelated original.
	taken := func(name string) bool {
		if _, ok := existing[name]; ok {
			return true
		}
		_, ok := existing[ThumbName(name)]
		return ok
	}

	for races := 0; ; races++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if races == MaxNameAttempts {
			return "", fmt.Errorf("%w: %q lost %d create races", domain.ErrNameResolutionExhausted, filename, races)
		}

		name, err := resolveName(filename, taken, s.letter)
		if err != nil {
			return "", err
		}

		w, err := dir.Create(name)
		if errors.Is(err, os.ErrExist) {
			s.metrics.NameCollisions.Inc()
			s.log.Info("Name taken since listing, resolving again", zap.String("name", name))
			existing[name] = struct{}{}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
		}

		if err := repository.WriteAll(w, data); err != nil {
			if rmErr := dir.Remove(name); rmErr != nil {
				s.log.Warn("Failed to remove partial original", zap.String("name", name), zap.Error(rmErr))
			}
			return "", fmt.Errorf("%w: write %s: %w", domain.ErrIOFailure, name, err)
		}
		return name, nil
	}
}

func (s *uploadService) writeThumbnail(dir repository.ImageDirectory, name, thumbName string, st settings.Settings) (*utils.Thumb, []byte, error) {
	src, err := dir.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	defer src.Close()

	dst, err := dir.Replace(thumbName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}

	var buf bytes.Buffer
	start := s.now()
	thumb, err := s.proc.Thumbnail(src, io.MultiWriter(dst, &buf), st.ThumbMaxWidth, st.ThumbMaxHeight)
	closeErr := dst.Close()
	s.metrics.ThumbnailDuration.Observe(s.now().Sub(start).Seconds())

	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := dir.Remove(thumbName); rmErr != nil {
			s.log.Warn("Failed to remove partial thumbnail", zap.String("name", thumbName), zap.Error(rmErr))
		}
		if errors.Is(err, utils.ErrUnsupportedFormat) {
			return nil, nil, fmt.Errorf("%w: %s: %w", domain.ErrUnsupportedImageFormat, name, err)
		}
		return nil, nil, fmt.Errorf("%w: thumbnail %s: %w", domain.ErrIOFailure, thumbName, err)
	}

	s.metrics.BytesWritten.Add(float64(buf.Len()))
	return thumb, buf.Bytes(), nil
}

// mirrorFile copies a stored file to the mirror. The local directory is the
// source of truth, so failures are logged and counted only.
func (s *uploadService) mirrorFile(ctx context.Context, name string, data []byte, contentType string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.UploadFile(ctx, name, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.metrics.MirrorFailures.Inc()
		s.log.Warn("Failed to mirror file", zap.String("name", name), zap.Error(err))
	}
}

func (s *uploadService) result(st settings.Settings, name, thumbName string, thumb *utils.Thumb) (*domain.Result, error) {
	originalURL := PublicURL(st.BaseURL, name)
	thumbURL := PublicURL(st.BaseURL, thumbName)
	fragment, err := RenderFragment(name, originalURL, thumbURL)
	if err != nil {
		return nil, fmt.Errorf("render fragment: %w", err)
	}
	return &domain.Result{
		Name:        name,
		ThumbName:   thumbName,
		URL:         originalURL,
		ThumbURL:    thumbURL,
		ThumbWidth:  thumb.Width,
		ThumbHeight: thumb.Height,
		Fragment:    fragment,
		UploadedAt:  s.now(),
	}, nil
}

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrUnsupportedType      = errors.New("unsupported image type")
	ErrTooLarge             = errors.New("image too large")
	ErrPhotoLimitReached    = errors.New("photo limit reached")
	ErrNotFound             = errors.New("user not found")
	ErrOnboardingIncomplete = errors.New("not enough photos to finish onboarding")
	ErrDependenciesNil      = errors.New("media dependencies are not configured")
)

const (
	defaultMaxPhotoBytes = 10 << 20
	defaultMaxPhotos     = 10
	defaultMinPhotos     = 5
)

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

type UserStore interface {
	Get(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) error
}

// ImageHost stores photo bytes somewhere addressable by URL.
type ImageHost interface {
	Upload(ctx context.Context, asset Asset) (Hosted, error)
	Destroy(ctx context.Context, assetID string) error
}

type Metrics interface {
	Upload(result string)
}

type Asset struct {
	UserID      string
	FileName    string
	ContentType string
	Body        io.Reader
	Size        int64
}

type Hosted struct {
	URL     string
	AssetID string
	Format  string
	Bytes   int64
	Width   int
	Height  int
}

type Dependencies struct {
	Users   UserStore
	Host    ImageHost
	Metrics Metrics
	Logger  *zap.Logger
}

type Config struct {
	MaxPhotoBytes       int64
	MaxPhotos           int
	OnboardingMinPhotos int
}

type OnboardingStatus struct {
	Count      int  `json:"count"`
	Required   int  `json:"required"`
	CanProceed bool `json:"canProceed"`
}

type Service struct {
	users   UserStore
	host    ImageHost
	metrics Metrics
	log     *zap.Logger
	cfg     Config
	now     func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = defaultMaxPhotoBytes
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = defaultMaxPhotos
	}
	if cfg.OnboardingMinPhotos <= 0 {
		cfg.OnboardingMinPhotos = defaultMinPhotos
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:   deps.Users,
		host:    deps.Host,
		metrics: deps.Metrics,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Upload validates an image, sends it to the host and appends it to the
// user's photos. progress receives whole percentages and may be nil.
func (s *Service) Upload(ctx context.Context, userID, fileName string, body io.Reader, size int64, progress func(pct int)) (model.Photo, error) {
	photo, err := s.upload(ctx, userID, fileName, body, size, progress)
	s.observe(err)
	return photo, err
}

func (s *Service) upload(ctx context.Context, userID, fileName string, body io.Reader, size int64, progress func(pct int)) (model.Photo, error) {
	if s.users == nil || s.host == nil {
		return model.Photo{}, ErrDependenciesNil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || body == nil {
		return model.Photo{}, ErrValidation
	}
	if size > s.cfg.MaxPhotoBytes {
		return model.Photo{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, s.cfg.MaxPhotoBytes)
	}

	// The declared size is advisory, the limit applies to what is read.
	data, err := io.ReadAll(io.LimitReader(body, s.cfg.MaxPhotoBytes+1))
	if err != nil {
		return model.Photo{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxPhotoBytes {
		return model.Photo{}, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.cfg.MaxPhotoBytes)
	}
	if len(data) == 0 {
		return model.Photo{}, fmt.Errorf("%w: empty file", ErrValidation)
	}

	mtype := mimetype.Detect(data)
	format, ok := allowedTypes[mtype.String()]
	if !ok {
		return model.Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.Photo{}, err
	}
	if len(u.Photos) >= s.cfg.MaxPhotos {
		return model.Photo{}, ErrPhotoLimitReached
	}

	hosted, err := s.host.Upload(ctx, Asset{
		UserID:      userID,
		FileName:    fileName,
		ContentType: mtype.String(),
		Body:        newProgressReader(bytes.NewReader(data), int64(len(data)), progress),
		Size:        int64(len(data)),
	})
	if err != nil {
		return model.Photo{}, fmt.Errorf("upload to image host: %w", err)
	}

	if hosted.Width == 0 || hosted.Height == 0 {
		if w, h, err := probeDimensions(data); err == nil {
			hosted.Width, hosted.Height = w, h
		} else {
			s.log.Debug("probe image dimensions", zap.String("format", format), zap.Error(err))
		}
	}
	if hosted.Format == "" {
		hosted.Format = format
	}
	if hosted.Bytes == 0 {
		hosted.Bytes = int64(len(data))
	}

	uploadedAt := s.now().UTC()
	photo := model.Photo{
		URL:        hosted.URL,
		AssetID:    hosted.AssetID,
		UploadedAt: &uploadedAt,
		Format:     hosted.Format,
		Bytes:      hosted.Bytes,
		Width:      hosted.Width,
		Height:     hosted.Height,
	}

	photos := append(append([]model.Photo(nil), u.Photos...), photo)
	if err := s.users.Update(ctx, userID, model.UserPatch{Photos: &photos, LastActive: &uploadedAt}); err != nil {
		if derr := s.host.Destroy(ctx, hosted.AssetID); derr != nil {
			s.log.Warn("remove orphaned upload",
				zap.String("user_id", userID),
				zap.String("asset_id", hosted.AssetID),
				zap.Error(derr),
			)
		}
		return model.Photo{}, fmt.Errorf("append photo: %w", err)
	}

	s.log.Info("photo uploaded",
		zap.String("user_id", userID),
		zap.String("asset_id", photo.AssetID),
		zap.Int64("bytes", photo.Bytes),
	)
	return photo, nil
}

// Delete removes the photo at index. Host cleanup is best effort.
func (s *Service) Delete(ctx context.Context, userID string, index int) ([]model.Photo, error) {
	if s.users == nil {
		return nil, ErrDependenciesNil
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(u.Photos) {
		return nil, fmt.Errorf("%w: photo index %d out of range", ErrValidation, index)
	}

	removed := u.Photos[index]
	photos := make([]model.Photo, 0, len(u.Photos)-1)
	photos = append(photos, u.Photos[:index]...)
	photos = append(photos, u.Photos[index+1:]...)
	if err := s.users.Update(ctx, u.ID, model.UserPatch{Photos: &photos}); err != nil {
		return nil, fmt.Errorf("remove photo: %w", err)
	}

	if removed.AssetID != "" && s.host != nil {
		if err := s.host.Destroy(ctx, removed.AssetID); err != nil {
			s.log.Warn("delete photo from image host",
				zap.String("user_id", u.ID),
				zap.String("asset_id", removed.AssetID),
				zap.Error(err),
			)
		}
	}
	return photos, nil
}

// SetPrimary moves the photo at index to the front.
func (s *Service) SetPrimary(ctx context.Context, userID string, index int) ([]model.Photo, error) {
	if s.users == nil {
		return nil, ErrDependenciesNil
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(u.Photos) {
		return nil, fmt.Errorf("%w: photo index %d out of range", ErrValidation, index)
	}
	if index == 0 {
		return u.Photos, nil
	}

	photos := make([]model.Photo, 0, len(u.Photos))
	photos = append(photos, u.Photos[index])
	photos = append(photos, u.Photos[:index]...)
	photos = append(photos, u.Photos[index+1:]...)
	if err := s.users.Update(ctx, u.ID, model.UserPatch{Photos: &photos}); err != nil {
		return nil, fmt.Errorf("reorder photos: %w", err)
	}
	return photos, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]model.Photo, error) {
	if s.users == nil {
		return nil, ErrDependenciesNil
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Photo, 0, len(u.Photos))
	for _, p := range u.Photos {
		if strings.TrimSpace(p.URL) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) OnboardingStatus(ctx context.Context, userID string) (OnboardingStatus, error) {
	photos, err := s.List(ctx, userID)
	if err != nil {
		return OnboardingStatus{}, err
	}
	return OnboardingStatus{
		Count:      len(photos),
		Required:   s.cfg.OnboardingMinPhotos,
		CanProceed: len(photos) >= s.cfg.OnboardingMinPhotos,
	}, nil
}

func (s *Service) CompleteOnboarding(ctx context.Context, userID string) error {
	status, err := s.OnboardingStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !status.CanProceed {
		return fmt.Errorf("%w: have %d, need %d", ErrOnboardingIncomplete, status.Count, status.Required)
	}
	now := s.now().UTC()
	if err := s.users.Update(ctx, strings.TrimSpace(userID), model.UserPatch{
		ProfileComplete: model.Ptr(true),
		LastActive:      &now,
	}); err != nil {
		return fmt.Errorf("complete onboarding: %w", err)
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (model.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.User{}, ErrValidation
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Service) observe(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.Upload("ok")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrTooLarge), errors.Is(err, ErrPhotoLimitReached):
		s.metrics.Upload("rejected")
	default:
		s.metrics.Upload("failed")
	}
}

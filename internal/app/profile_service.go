package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 5 << 20

// ProfileService manages the signed-in user's profile row and avatar.
type ProfileService struct {
	profiles    ports.ProfileStore
	favorites   ports.FavoriteStore
	collections ports.CollectionStore
	files       ports.FileStorage
	flags       ports.FeatureFlags
	logger      *slog.Logger
	now         func() time.Time
}

// ProfileServiceConfig contains the dependencies of the profile service.
type ProfileServiceConfig struct {
	Profiles    ports.ProfileStore
	Favorites   ports.FavoriteStore
	Collections ports.CollectionStore
	Files       ports.FileStorage
	Flags       ports.FeatureFlags
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewProfileService creates a profile service.
func NewProfileService(cfg ProfileServiceConfig) *ProfileService {
	if cfg.Profiles == nil || cfg.Favorites == nil || cfg.Collections == nil {
		panic("app: profile, favorite and collection stores are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &ProfileService{
		profiles:    cfg.Profiles,
		favorites:   cfg.Favorites,
		collections: cfg.Collections,
		files:       cfg.Files,
		flags:       cfg.Flags,
		logger:      logger.With(slog.String("component", "app.ProfileService")),
		now:         now,
	}
}

// Get returns the user's profile, or nil when none has been saved yet.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting profile: %w", err)
	}

	return &p, nil
}

// Update saves the username and avatar URL.
func (s *ProfileService) Update(ctx context.Context, userID, username, avatarURL string) (domain.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Profile{}, domain.NewValidationError("username", "username is required")
	}

	p, err := s.profiles.UpsertProfile(ctx, domain.Profile{
		ID:        userID,
		Username:  username,
		AvatarURL: strings.TrimSpace(avatarURL),
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("saving profile: %w", err)
	}

	return p, nil
}

// UploadAvatar stores an image and points the profile at it. The content
// type is sniffed from the bytes; anything but an image is rejected.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, data []byte) (domain.Profile, error) {
	if s.files == nil || (s.flags != nil && !s.flags.IsEnabled(ctx, ports.FlagAvatarUploads, true)) {
		return domain.Profile{}, domain.NewForbiddenError("upload avatar", "avatar uploads are disabled")
	}

	if len(data) == 0 {
		return domain.Profile{}, domain.NewValidationError("avatar", "file is empty")
	}

	if len(data) > MaxAvatarBytes {
		return domain.Profile{}, domain.NewValidationError("avatar", "file is larger than 5 MiB")
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return domain.Profile{}, domain.NewValidationError("avatar", "file is not an image")
	}

	now := s.now()
	path := fmt.Sprintf("avatars/%s/%d%s", userID, now.UnixMilli(), mt.Extension())

	url, err := s.files.Upload(ctx, path, data, mt.String())
	if err != nil {
		return domain.Profile{}, fmt.Errorf("uploading avatar: %w", err)
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	next := domain.Profile{ID: userID, AvatarURL: url, UpdatedAt: now.UTC()}
	if current != nil {
		next.Username = current.Username
	}

	p, err := s.profiles.UpsertProfile(ctx, next)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("saving avatar url: %w", err)
	}

	s.logger.InfoContext(ctx, "avatar uploaded",
		slog.String("path", path),
		slog.String("content_type", mt.String()),
	)

	return p, nil
}

// Summary gathers the profile and the user's favorite and collection counts
// concurrently.
func (s *ProfileService) Summary(ctx context.Context, userID string) (domain.ProfileSummary, error) {
	profile, favorites, collections, err := Parallel3(ctx,
		func(ctx context.Context) (*domain.Profile, error) { return s.Get(ctx, userID) },
		func(ctx context.Context) (int, error) { return s.favorites.CountFavorites(ctx, userID) },
		func(ctx context.Context) (int, error) { return s.collections.CountCollections(ctx, userID) },
	)
	if err != nil {
		return domain.ProfileSummary{}, err
	}

	return domain.ProfileSummary{
		Profile:         profile,
		FavoriteCount:   favorites,
		CollectionCount: collections,
	}, nil
}

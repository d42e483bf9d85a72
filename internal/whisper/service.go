package whisper

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"calltrack/internal/audit"
	"calltrack/internal/numbers"
	"calltrack/pkg/logger"

	"github.com/google/uuid"
)

// NumberOwnership confirms a number belongs to the caller.
type NumberOwnership interface {
	Get(ctx context.Context, userID, id string) (numbers.OwnedNumber, error)
}

type Options struct {
	MaxAudioBytes int64
	// InlineAudioURL builds the public URL that serves an inline clip.
	InlineAudioURL func(numberID string) string
}

type Service struct {
	repo    Repository
	numbers NumberOwnership
	store   AudioStore
	audit   audit.Appender
	opts    Options
	clock   func() time.Time
}

// NewService wires the whisper service. store may be nil, in which case
// uploads are kept inline in the database.
func NewService(repo Repository, owned NumberOwnership, store AudioStore, auditor audit.Appender, opts Options) *Service {
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = 5 << 20
	}
	return &Service{repo: repo, numbers: owned, store: store, audit: auditor, opts: opts, clock: time.Now}
}

func (s *Service) owned(ctx context.Context, userID, numberID string) error {
	_, err := s.numbers.Get(ctx, userID, numberID)
	if errors.Is(err, numbers.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) Get(ctx context.Context, userID, numberID string) (Config, error) {
	if err := s.owned(ctx, userID, numberID); err != nil {
		return Config{}, err
	}
	return s.repo.Get(ctx, userID, numberID)
}

// GetByNumberID is the router's read path.
func (s *Service) GetByNumberID(ctx context.Context, numberID string) (Config, error) {
	return s.repo.GetByNumberID(ctx, numberID)
}

func (s *Service) Upsert(ctx context.Context, userID, numberID string, req UpsertRequest) (Config, error) {
	if err := s.owned(ctx, userID, numberID); err != nil {
		return Config{}, err
	}
	existing, err := s.repo.Get(ctx, userID, numberID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Config{}, err
	}

	c, err := normalize(req)
	if err != nil {
		return Config{}, err
	}

	now := s.clock().UTC()
	c.ID = uuid.NewString()
	c.UserID = userID
	c.NumberID = numberID
	c.CreatedAt = now
	c.UpdatedAt = now
	// Uploaded audio survives text edits and mode switches, but an explicit
	// audio URL replaces it.
	if c.AudioURL == "" {
		c.AudioKey = existing.AudioKey
		c.Audio = existing.Audio
	}

	out, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return Config{}, err
	}
	s.dropAudio(ctx, existing.AudioKey, out.AudioKey)
	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventWhisperUpdated,
		TargetID: numberID,
		Metadata: map[string]any{"mode": string(out.Mode), "enabled": out.Enabled},
	})
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID, numberID string) error {
	if err := s.owned(ctx, userID, numberID); err != nil {
		return err
	}
	existing, err := s.repo.Get(ctx, userID, numberID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, numberID); err != nil {
		return err
	}
	if existing.AudioKey != "" && s.store != nil {
		if err := s.store.Delete(ctx, existing.AudioKey); err != nil {
			logger.From(ctx).Warn("whisper audio delete failed", "key", existing.AudioKey, "err", err)
		}
	}
	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventWhisperDeleted,
		TargetID: numberID,
	})
	return nil
}

// UploadAudio stores a clip for play mode. New configs start enabled.
func (s *Service) UploadAudio(ctx context.Context, userID, numberID, mimeType string, data []byte) (Config, error) {
	if err := s.owned(ctx, userID, numberID); err != nil {
		return Config{}, err
	}
	if len(data) == 0 {
		return Config{}, fmt.Errorf("%w: audio is empty", ErrInvalidArgument)
	}
	if int64(len(data)) > s.opts.MaxAudioBytes {
		return Config{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrAudioTooLarge, len(data), s.opts.MaxAudioBytes)
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return Config{}, fmt.Errorf("%w: content type must be audio/*", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	c, err := s.repo.Get(ctx, userID, numberID)
	switch {
	case errors.Is(err, ErrNotFound):
		c = Config{
			ID:        uuid.NewString(),
			UserID:    userID,
			NumberID:  numberID,
			Enabled:   true,
			Voice:     DefaultVoice,
			Language:  DefaultLanguage,
			CreatedAt: now,
		}
	case err != nil:
		return Config{}, err
	}
	previousKey := c.AudioKey

	c.Mode = ModePlay
	c.AudioURL = ""
	c.UpdatedAt = now
	if s.store != nil {
		key := s.store.KeyFor(userID, numberID, uuid.NewString()+extensionFor(mediaType))
		if err := s.store.Put(ctx, key, mediaType, data); err != nil {
			return Config{}, err
		}
		c.AudioKey = key
		c.Audio = nil
	} else {
		c.AudioKey = ""
		c.Audio = &Audio{Data: data, MIME: mediaType, Size: len(data)}
	}

	out, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return Config{}, err
	}
	s.dropAudio(ctx, previousKey, out.AudioKey)
	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventWhisperUpdated,
		TargetID: numberID,
		Metadata: map[string]any{"mode": string(ModePlay), "audio_bytes": len(data)},
	})
	return out, nil
}

// dropAudio removes a stored clip that the saved config no longer points at.
// Failures only leave an orphaned object behind.
func (s *Service) dropAudio(ctx context.Context, previous, current string) {
	if previous == "" || previous == current || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, previous); err != nil {
		logger.From(ctx).Warn("whisper audio delete failed", "key", previous, "err", err)
	}
}

// Audio returns the inline clip for a number, for the provider to fetch.
func (s *Service) Audio(ctx context.Context, numberID string) (Audio, error) {
	c, err := s.repo.GetByNumberID(ctx, numberID)
	if err != nil {
		return Audio{}, err
	}
	if c.Audio == nil || len(c.Audio.Data) == 0 {
		return Audio{}, ErrNotFound
	}
	return *c.Audio, nil
}

// PlaybackURL resolves a URL the provider can fetch, or "" when no source is
// usable.
func (s *Service) PlaybackURL(ctx context.Context, c Config) string {
	if c.AudioKey != "" && s.store != nil {
		u, err := s.store.PresignGet(ctx, c.AudioKey)
		if err == nil {
			return u
		}
		logger.From(ctx).Warn("whisper presign failed", "key", c.AudioKey, "err", err)
	}
	if c.AudioURL != "" {
		return c.AudioURL
	}
	if c.Audio != nil && len(c.Audio.Data) > 0 && s.opts.InlineAudioURL != nil {
		return s.opts.InlineAudioURL(c.NumberID)
	}
	return ""
}

func normalize(req UpsertRequest) (Config, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeSay
	}
	if mode != ModeSay && mode != ModePlay {
		return Config{}, fmt.Errorf("%w: mode must be say or play", ErrInvalidArgument)
	}

	text := strings.TrimSpace(req.Text)
	if mode == ModeSay && text == "" {
		return Config{}, fmt.Errorf("%w: text required for say mode", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return Config{}, fmt.Errorf("%w: text longer than %d characters", ErrInvalidArgument, maxTextLen)
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = DefaultVoice
	}
	if _, ok := allowedVoices[voice]; !ok {
		return Config{}, fmt.Errorf("%w: unsupported voice %q", ErrInvalidArgument, voice)
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	if _, ok := allowedLanguages[lang]; !ok {
		return Config{}, fmt.Errorf("%w: unsupported language %q", ErrInvalidArgument, lang)
	}

	audioURL := strings.TrimSpace(req.AudioURL)
	if audioURL != "" {
		u, err := url.Parse(audioURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return Config{}, fmt.Errorf("%w: audio_url must be an absolute http(s) URL", ErrInvalidArgument)
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return Config{
		Enabled:  enabled,
		Mode:     mode,
		Text:     text,
		Voice:    voice,
		Language: lang,
		AudioURL: audioURL,
	}, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	}
	return ""
}

package playlists

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreate = "playlists.create"
	opList   = "playlists.list"
	opGet    = "playlists.get"
	opUpdate = "playlists.update"
	opDelete = "playlists.delete"

	insertBatchSize = 100
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the playlist service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service exposes owner-scoped playlist operations.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService constructs the playlist service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal("playlists.new", "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.Internal("playlists.new", "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create stores a new playlist for ownerID together with its tracks.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (Details, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Details{}, apperrors.New(opCreate, apperrors.KindValidation, "owner is required")
	}
	name, description, err := normalizeHeader(opCreate, input.Name, input.Description)
	if err != nil {
		return Details{}, err
	}
	tracks, err := normalizeTracks(opCreate, input.Tracks)
	if err != nil {
		return Details{}, err
	}

	playlistID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Details{}, apperrors.Internal(opCreate, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	playlist := Playlist{
		ID:          playlistID,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var stored []Track
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&playlist).Error; err != nil {
			s.logError(opCreate, "playlist_insert_failed", err, zap.String("owner_id", ownerID))
			return apperrors.Internal(opCreate, "playlist_insert_failed", err)
		}
		stored, err = s.replaceTracks(tx, opCreate, playlist.ID, tracks, now)
		return err
	})
	if txErr != nil {
		return Details{}, txErr
	}
	return toDetails(playlist, stored), nil
}

// List returns the owner's playlists, most recently updated first, with tracks
// loaded in one batch.
func (s *Service) List(ctx context.Context, ownerID string) ([]Details, error) {
	db := s.db.WithContext(ctx)

	var playlists []Playlist
	if err := db.Where("owner_account_id = ?", strings.TrimSpace(ownerID)).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&playlists).Error; err != nil {
		s.logError(opList, "playlist_query_failed", err, zap.String("owner_id", ownerID))
		return nil, apperrors.Internal(opList, "playlist_query_failed", err)
	}
	if len(playlists) == 0 {
		return []Details{}, nil
	}

	playlistIDs := make([]string, 0, len(playlists))
	for _, playlist := range playlists {
		playlistIDs = append(playlistIDs, playlist.ID)
	}
	var tracks []Track
	if err := db.Where("playlist_id IN ?", playlistIDs).
		Order("playlist_id ASC").
		Order("position ASC").
		Find(&tracks).Error; err != nil {
		s.logError(opList, "track_query_failed", err, zap.String("owner_id", ownerID))
		return nil, apperrors.Internal(opList, "track_query_failed", err)
	}

	grouped := make(map[string][]Track, len(playlists))
	for _, track := range tracks {
		grouped[track.PlaylistID] = append(grouped[track.PlaylistID], track)
	}

	result := make([]Details, 0, len(playlists))
	for _, playlist := range playlists {
		result = append(result, toDetails(playlist, grouped[playlist.ID]))
	}
	return result, nil
}

// Get returns one owned playlist. Missing and foreign playlists are both NotFound.
func (s *Service) Get(ctx context.Context, ownerID, playlistID string) (Details, error) {
	db := s.db.WithContext(ctx)
	playlist, err := s.findOwned(db, opGet, ownerID, playlistID)
	if err != nil {
		return Details{}, err
	}
	tracks, err := s.loadTracks(db, opGet, playlist.ID)
	if err != nil {
		return Details{}, err
	}
	return toDetails(playlist, tracks), nil
}

// Update renames an owned playlist and, when input.Tracks is set, replaces its tracks.
func (s *Service) Update(ctx context.Context, ownerID, playlistID string, input UpdateInput) (Details, error) {
	name, description, err := normalizeHeader(opUpdate, input.Name, input.Description)
	if err != nil {
		return Details{}, err
	}
	var tracks []TrackInput
	if input.Tracks != nil {
		tracks, err = normalizeTracks(opUpdate, *input.Tracks)
		if err != nil {
			return Details{}, err
		}
	}

	var result Details
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		playlist, err := s.findOwned(tx, opUpdate, ownerID, playlistID)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		if err := tx.Model(&Playlist{}).
			Where("id = ?", playlist.ID).
			Updates(map[string]interface{}{
				"name":        name,
				"description": description,
				"updated_at":  now,
			}).Error; err != nil {
			s.logError(opUpdate, "playlist_update_failed", err, zap.String("playlist_id", playlist.ID))
			return apperrors.Internal(opUpdate, "playlist_update_failed", err)
		}
		playlist.Name = name
		playlist.Description = description
		playlist.UpdatedAt = now

		var stored []Track
		if input.Tracks != nil {
			stored, err = s.replaceTracks(tx, opUpdate, playlist.ID, tracks, now)
		} else {
			stored, err = s.loadTracks(tx, opUpdate, playlist.ID)
		}
		if err != nil {
			return err
		}
		result = toDetails(playlist, stored)
		return nil
	})
	if txErr != nil {
		return Details{}, txErr
	}
	return result, nil
}

// Delete removes an owned playlist and its tracks.
func (s *Service) Delete(ctx context.Context, ownerID, playlistID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		playlist, err := s.findOwned(tx, opDelete, ownerID, playlistID)
		if err != nil {
			return err
		}
		if err := tx.Where("playlist_id = ?", playlist.ID).Delete(&Track{}).Error; err != nil {
			s.logError(opDelete, "track_delete_failed", err, zap.String("playlist_id", playlist.ID))
			return apperrors.Internal(opDelete, "track_delete_failed", err)
		}
		if err := tx.Where("id = ?", playlist.ID).Delete(&Playlist{}).Error; err != nil {
			s.logError(opDelete, "playlist_delete_failed", err, zap.String("playlist_id", playlist.ID))
			return apperrors.Internal(opDelete, "playlist_delete_failed", err)
		}
		return nil
	})
}

func (s *Service) findOwned(db *gorm.DB, operation, ownerID, playlistID string) (Playlist, error) {
	var playlist Playlist
	err := db.Where("id = ? AND owner_account_id = ?", strings.TrimSpace(playlistID), strings.TrimSpace(ownerID)).
		Take(&playlist).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Playlist{}, apperrors.New(operation, apperrors.KindNotFound, "playlist not found")
	}
	if err != nil {
		s.logError(operation, "playlist_select_failed", err, zap.String("playlist_id", playlistID))
		return Playlist{}, apperrors.Internal(operation, "playlist_select_failed", err)
	}
	return playlist, nil
}

func (s *Service) loadTracks(db *gorm.DB, operation, playlistID string) ([]Track, error) {
	var tracks []Track
	if err := db.Where("playlist_id = ?", playlistID).
		Order("position ASC").
		Find(&tracks).Error; err != nil {
		s.logError(operation, "track_query_failed", err, zap.String("playlist_id", playlistID))
		return nil, apperrors.Internal(operation, "track_query_failed", err)
	}
	return tracks, nil
}

// replaceTracks deletes every stored track of the playlist and inserts the
// normalized list at positions 1..n. Callers run it inside a transaction.
func (s *Service) replaceTracks(tx *gorm.DB, operation, playlistID string, tracks []TrackInput, addedAt time.Time) ([]Track, error) {
	if err := tx.Where("playlist_id = ?", playlistID).Delete(&Track{}).Error; err != nil {
		s.logError(operation, "track_delete_failed", err, zap.String("playlist_id", playlistID))
		return nil, apperrors.Internal(operation, "track_delete_failed", err)
	}
	if len(tracks) == 0 {
		return []Track{}, nil
	}

	rows := make([]Track, 0, len(tracks))
	for index, input := range tracks {
		rowID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(operation, "id_generation_failed", err)
			return nil, apperrors.Internal(operation, "id_generation_failed", err)
		}
		rows = append(rows, Track{
			ID:         rowID,
			PlaylistID: playlistID,
			TrackID:    input.TrackID,
			Title:      input.Title,
			ArtistName: input.ArtistName,
			Genre:      input.Genre,
			Position:   index + 1,
			AddedAt:    addedAt,
		})
	}
	if err := tx.CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		s.logError(operation, "track_insert_failed", err, zap.String("playlist_id", playlistID))
		return nil, apperrors.Internal(operation, "track_insert_failed", err)
	}
	return rows, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("playlists service error", attrs...)
}

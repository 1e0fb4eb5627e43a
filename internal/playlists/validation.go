package playlists

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
)

const (
	maxTracks            = 500
	maxNameLength        = 120
	maxDescriptionLength = 600
	maxTrackIDLength     = 64
	maxTitleLength       = 200
	maxArtistNameLength  = 200
	maxGenreLength       = 80
)

func normalizeHeader(operation, rawName, rawDescription string) (string, *string, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return "", nil, apperrors.New(operation, apperrors.KindValidation, "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", nil, apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	description := strings.TrimSpace(rawDescription)
	if description == "" {
		return name, nil, nil
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", nil, apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return name, &description, nil
}

// normalizeTracks trims every field and rejects the whole list on the first
// blank, oversize, or repeated entry.
func normalizeTracks(operation string, tracks []TrackInput) ([]TrackInput, error) {
	if len(tracks) > maxTracks {
		return nil, apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("playlist cannot exceed %d tracks", maxTracks))
	}
	normalized := make([]TrackInput, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for index, track := range tracks {
		trackID, err := requireField(operation, index, "track id", track.TrackID, maxTrackIDLength)
		if err != nil {
			return nil, err
		}
		if _, duplicate := seen[trackID]; duplicate {
			return nil, apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("playlist contains duplicate track id %q", trackID))
		}
		seen[trackID] = struct{}{}

		title, err := requireField(operation, index, "title", track.Title, maxTitleLength)
		if err != nil {
			return nil, err
		}
		artistName, err := requireField(operation, index, "artist name", track.ArtistName, maxArtistNameLength)
		if err != nil {
			return nil, err
		}
		genre, err := requireField(operation, index, "genre", track.Genre, maxGenreLength)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, TrackInput{
			TrackID:    trackID,
			Title:      title,
			ArtistName: artistName,
			Genre:      genre,
		})
	}
	return normalized, nil
}

func requireField(operation string, index int, field, value string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("track %d: %s is required", index+1, field))
	}
	if utf8.RuneCountInString(trimmed) > maxLength {
		return "", apperrors.New(operation, apperrors.KindValidation, fmt.Sprintf("track %d: %s must be at most %d characters", index+1, field, maxLength))
	}
	return trimmed, nil
}

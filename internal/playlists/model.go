// Package playlists stores ownership-scoped playlists with ordered track lists.
package playlists

import "time"

// Playlist is owned by exactly one account and mutated only by it.
type Playlist struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	OwnerID     string    `gorm:"column:owner_account_id;size:36;not null;index:idx_playlists_owner_updated,priority:1"`
	Name        string    `gorm:"column:name;size:120;not null"`
	Description *string   `gorm:"column:description;size:600"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_playlists_owner_updated,priority:2"`
}

// TableName binds Playlist to its table.
func (Playlist) TableName() string {
	return "playlists"
}

// Track is one positioned entry of a playlist. The whole set is rewritten on every replace.
type Track struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null"`
	PlaylistID string    `gorm:"column:playlist_id;size:36;not null;uniqueIndex:idx_playlist_tracks_position,priority:1;uniqueIndex:idx_playlist_tracks_track,priority:1"`
	TrackID    string    `gorm:"column:track_id;size:64;not null;uniqueIndex:idx_playlist_tracks_track,priority:2"`
	Title      string    `gorm:"column:title;size:200;not null"`
	ArtistName string    `gorm:"column:artist_name;size:200;not null"`
	Genre      string    `gorm:"column:genre;size:80;not null"`
	Position   int       `gorm:"column:position;not null;uniqueIndex:idx_playlist_tracks_position,priority:2"`
	AddedAt    time.Time `gorm:"column:added_at;not null"`
}

// TableName binds Track to its table.
func (Track) TableName() string {
	return "playlist_tracks"
}

// TrackInput is a submitted track entry before normalization.
type TrackInput struct {
	TrackID    string
	Title      string
	ArtistName string
	Genre      string
}

// CreateInput describes a new playlist. A blank description is stored as absent.
type CreateInput struct {
	Name        string
	Description string
	Tracks      []TrackInput
}

// UpdateInput describes a playlist edit. A nil Tracks leaves the stored tracks
// untouched; a non-nil one, even empty, replaces them.
type UpdateInput struct {
	Name        string
	Description string
	Tracks      *[]TrackInput
}

// Details is a playlist with its tracks in position order.
type Details struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tracks      []TrackDetails
}

// TrackDetails is the read view of a stored track.
type TrackDetails struct {
	TrackID    string
	Title      string
	ArtistName string
	Genre      string
	Position   int
}

func toDetails(playlist Playlist, tracks []Track) Details {
	items := make([]TrackDetails, 0, len(tracks))
	for _, track := range tracks {
		items = append(items, TrackDetails{
			TrackID:    track.TrackID,
			Title:      track.Title,
			ArtistName: track.ArtistName,
			Genre:      track.Genre,
			Position:   track.Position,
		})
	}
	return Details{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		CreatedAt:   playlist.CreatedAt,
		UpdatedAt:   playlist.UpdatedAt,
		Tracks:      items,
	}
}

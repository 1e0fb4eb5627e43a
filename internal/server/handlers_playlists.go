package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/playlists"
	"github.com/gin-gonic/gin"
)

type trackPayload struct {
	TrackID    string `json:"track_id" binding:"required"`
	Title      string `json:"title" binding:"required"`
	ArtistName string `json:"artist_name" binding:"required"`
	Genre      string `json:"genre" binding:"required"`
}

type createPlaylistRequestPayload struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Tracks      []trackPayload `json:"tracks" binding:"omitempty,dive"`
}

// updatePlaylistRequestPayload keeps Tracks as a pointer so an absent field
// leaves the stored tracks alone while an empty array clears them.
type updatePlaylistRequestPayload struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Tracks      *[]trackPayload `json:"tracks" binding:"omitempty,dive"`
}

type trackResponsePayload struct {
	TrackID    string `json:"track_id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	Genre      string `json:"genre"`
	Position   int    `json:"position"`
}

type playlistResponsePayload struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Tracks      []trackResponsePayload `json:"tracks"`
}

type playlistsResponsePayload struct {
	Playlists []playlistResponsePayload `json:"playlists"`
}

func (h *httpHandler) handleCreatePlaylist(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}
	var request createPlaylistRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	details, err := h.playlists.Create(c.Request.Context(), accountID, playlists.CreateInput{
		Name:        request.Name,
		Description: request.Description,
		Tracks:      toTrackInputs(request.Tracks),
	})
	if err != nil {
		h.respondError(c, "create_playlist", err)
		return
	}
	c.JSON(http.StatusCreated, toPlaylistResponse(details))
}

func (h *httpHandler) handleListPlaylists(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	owned, err := h.playlists.List(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, "list_playlists", err)
		return
	}

	response := playlistsResponsePayload{Playlists: make([]playlistResponsePayload, 0, len(owned))}
	for _, details := range owned {
		response.Playlists = append(response.Playlists, toPlaylistResponse(details))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetPlaylist(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	details, err := h.playlists.Get(c.Request.Context(), accountID, c.Param("playlistId"))
	if err != nil {
		h.respondError(c, "get_playlist", err)
		return
	}
	c.JSON(http.StatusOK, toPlaylistResponse(details))
}

func (h *httpHandler) handleUpdatePlaylist(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}
	var request updatePlaylistRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	input := playlists.UpdateInput{
		Name:        request.Name,
		Description: request.Description,
	}
	if request.Tracks != nil {
		tracks := toTrackInputs(*request.Tracks)
		input.Tracks = &tracks
	}

	details, err := h.playlists.Update(c.Request.Context(), accountID, c.Param("playlistId"), input)
	if err != nil {
		h.respondError(c, "update_playlist", err)
		return
	}
	c.JSON(http.StatusOK, toPlaylistResponse(details))
}

func (h *httpHandler) handleDeletePlaylist(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	if err := h.playlists.Delete(c.Request.Context(), accountID, c.Param("playlistId")); err != nil {
		h.respondError(c, "delete_playlist", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toTrackInputs(payloads []trackPayload) []playlists.TrackInput {
	inputs := make([]playlists.TrackInput, 0, len(payloads))
	for _, payload := range payloads {
		inputs = append(inputs, playlists.TrackInput{
			TrackID:    payload.TrackID,
			Title:      payload.Title,
			ArtistName: payload.ArtistName,
			Genre:      payload.Genre,
		})
	}
	return inputs
}

func toPlaylistResponse(details playlists.Details) playlistResponsePayload {
	tracks := make([]trackResponsePayload, 0, len(details.Tracks))
	for _, track := range details.Tracks {
		tracks = append(tracks, trackResponsePayload{
			TrackID:    track.TrackID,
			Title:      track.Title,
			ArtistName: track.ArtistName,
			Genre:      track.Genre,
			Position:   track.Position,
		})
	}
	return playlistResponsePayload{
		ID:          details.ID,
		Name:        details.Name,
		Description: details.Description,
		CreatedAt:   details.CreatedAt,
		UpdatedAt:   details.UpdatedAt,
		Tracks:      tracks,
	}
}

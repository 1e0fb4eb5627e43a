package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusFollowed         = "FOLLOWED"
	statusAlreadyFollowing = "ALREADY_FOLLOWING"
)

type followResponsePayload struct {
	TargetID   string    `json:"target_id"`
	Status     string    `json:"status"`
	FollowedAt time.Time `json:"followed_at"`
}

type followedPayload struct {
	TargetID   string    `json:"target_id"`
	FollowedAt time.Time `json:"followed_at"`
}

type followsResponsePayload struct {
	Follows []followedPayload `json:"follows"`
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	result, err := h.follows.Follow(c.Request.Context(), accountID, c.Param("targetId"))
	if err != nil {
		h.respondError(c, "follow", err)
		return
	}

	status, code := statusAlreadyFollowing, http.StatusOK
	if result.Created {
		status, code = statusFollowed, http.StatusCreated
	}
	c.JSON(code, followResponsePayload{
		TargetID:   result.Edge.TargetID,
		Status:     status,
		FollowedAt: result.Edge.CreatedAt,
	})
}

func (h *httpHandler) handleUnfollow(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	if err := h.follows.Unfollow(c.Request.Context(), accountID, c.Param("targetId")); err != nil {
		h.respondError(c, "unfollow", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListFollows(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	edges, err := h.follows.ListFollowed(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, "list_follows", err)
		return
	}

	response := followsResponsePayload{Follows: make([]followedPayload, 0, len(edges))}
	for _, edge := range edges {
		response.Follows = append(response.Follows, followedPayload{
			TargetID:   edge.TargetID,
			FollowedAt: edge.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

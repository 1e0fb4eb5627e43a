package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/follows"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/playlists"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusForKind(testContext *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindValidation:          http.StatusBadRequest,
		apperrors.KindSelfFollow:          http.StatusBadRequest,
		apperrors.KindUnsupportedProvider: http.StatusBadRequest,
		apperrors.KindInvalidCredentials:  http.StatusUnauthorized,
		apperrors.KindNotFound:            http.StatusNotFound,
		apperrors.KindDuplicateEmail:      http.StatusConflict,
		apperrors.KindConflict:            http.StatusConflict,
		apperrors.KindInternal:            http.StatusInternalServerError,
	}
	for kind, expected := range cases {
		if got := statusForKind(kind); got != expected {
			testContext.Fatalf("kind %s: expected %d, got %d", kind, expected, got)
		}
	}
}

func TestHandleFollowMapsSelfFollow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(accountIDContextKey, "account-1")
	context.Params = gin.Params{{Key: "targetId", Value: "account-1"}}
	context.Request = httptest.NewRequest(http.MethodPost, "/api/v1/users/me/follows/account-1", http.NoBody)

	handler := &httpHandler{
		follows: stubFollowGraph{followErr: apperrors.New("follows.follow", apperrors.KindSelfFollow, "cannot follow yourself")},
		logger:  zap.NewNop(),
	}

	handler.handleFollow(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"self_follow"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleFollowLogsInternalErrors(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(accountIDContextKey, "account-1")
	context.Params = gin.Params{{Key: "targetId", Value: "account-2"}}
	context.Request = httptest.NewRequest(http.MethodPost, "/api/v1/users/me/follows/account-2", http.NoBody)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		follows: stubFollowGraph{followErr: errors.New("database is locked")},
		logger:  zap.New(core),
	}

	handler.handleFollow(context)

	if recorder.Code != http.StatusInternalServerError {
		testContext.Fatalf("expected internal error status, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"error":"internal"}` {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		testContext.Fatalf("expected the internal failure to be logged, got %v", logs.All())
	}
}

func TestHandleUpdatePlaylistDistinguishesAbsentAndEmptyTracks(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		body          string
		expectTracks  bool
		expectedCount int
	}{
		"absent": {body: `{"name":"Mix"}`, expectTracks: false},
		"empty":  {body: `{"name":"Mix","tracks":[]}`, expectTracks: true, expectedCount: 0},
		"listed": {body: `{"name":"Mix","tracks":[{"track_id":"t1","title":"T","artist_name":"A","genre":"G"}]}`, expectTracks: true, expectedCount: 1},
	}
	for name, testCase := range cases {
		recorder := httptest.NewRecorder()
		context, _ := gin.CreateTestContext(recorder)
		context.Set(accountIDContextKey, "account-1")
		context.Params = gin.Params{{Key: "playlistId", Value: "playlist-1"}}
		request := httptest.NewRequest(http.MethodPut, "/api/v1/users/me/playlists/playlist-1", strings.NewReader(testCase.body))
		request.Header.Set("Content-Type", "application/json")
		context.Request = request

		store := &recordingPlaylistStore{}
		handler := &httpHandler{playlists: store, logger: zap.NewNop()}
		handler.handleUpdatePlaylist(context)

		if recorder.Code != http.StatusOK {
			testContext.Fatalf("%s: expected ok, got %d: %s", name, recorder.Code, recorder.Body.String())
		}
		if (store.lastUpdate.Tracks != nil) != testCase.expectTracks {
			testContext.Fatalf("%s: unexpected tracks presence %v", name, store.lastUpdate.Tracks != nil)
		}
		if testCase.expectTracks && len(*store.lastUpdate.Tracks) != testCase.expectedCount {
			testContext.Fatalf("%s: expected %d tracks, got %d", name, testCase.expectedCount, len(*store.lastUpdate.Tracks))
		}
	}
}

func TestHandleCreatePlaylistRejectsIncompleteTrack(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(accountIDContextKey, "account-1")
	body := `{"name":"Mix","tracks":[{"track_id":"t1","title":"T","artist_name":"A"}]}`
	request := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/playlists", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	store := &recordingPlaylistStore{}
	handler := &httpHandler{playlists: store, logger: zap.NewNop()}
	handler.handleCreatePlaylist(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"error":"validation_error"}` {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
	if store.createCalls != 0 {
		testContext.Fatalf("did not expect the store to be called")
	}
}

type stubFollowGraph struct {
	followErr error
}

func (s stubFollowGraph) Follow(context.Context, string, string) (follows.FollowResult, error) {
	return follows.FollowResult{}, s.followErr
}

func (s stubFollowGraph) Unfollow(context.Context, string, string) error {
	return nil
}

func (s stubFollowGraph) ListFollowed(context.Context, string) ([]follows.Edge, error) {
	return nil, nil
}

type recordingPlaylistStore struct {
	createCalls int
	lastUpdate  playlists.UpdateInput
}

func (s *recordingPlaylistStore) Create(_ context.Context, _ string, input playlists.CreateInput) (playlists.Details, error) {
	s.createCalls++
	return playlists.Details{Name: input.Name}, nil
}

func (s *recordingPlaylistStore) List(context.Context, string) ([]playlists.Details, error) {
	return nil, nil
}

func (s *recordingPlaylistStore) Get(context.Context, string, string) (playlists.Details, error) {
	return playlists.Details{}, nil
}

func (s *recordingPlaylistStore) Update(_ context.Context, _ string, playlistID string, input playlists.UpdateInput) (playlists.Details, error) {
	s.lastUpdate = input
	return playlists.Details{ID: playlistID, Name: input.Name}, nil
}

func (s *recordingPlaylistStore) Delete(context.Context, string, string) error {
	return nil
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/town"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

type staticTokenSource struct {
	fail bool
}

func (s staticTokenSource) GetTokenForTown(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error) {
	if s.fail {
		return "", fmt.Errorf("provider down")
	}
	return "test-video-token", nil
}

func newTestServer(tokens town.VideoTokenSource, capacity int) (*gin.Engine, *town.TownsStore) {
	gin.SetMode(gin.TestMode)
	store := town.NewTownsStore(tokens, capacity)
	router := gin.New()
	NewHandler(store).RegisterRoutes(router)
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateTownHandler(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)

	resp := doJSON(router, http.MethodPost, "/towns", gin.H{
		"friendlyName":     "Main Street",
		"isPubliclyListed": true,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		CoveyTownID        string `json:"coveyTownID"`
		TownUpdatePassword string `json:"townUpdatePassword"`
		FriendlyName       string `json:"friendlyName"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CoveyTownID)
	assert.NotEmpty(t, body.TownUpdatePassword)
	assert.Equal(t, "Main Street", body.FriendlyName)
	assert.NotNil(t, store.ControllerForTown(types.TownIDType(body.CoveyTownID)))
}

func TestCreateTownHandler_RequiresFriendlyName(t *testing.T) {
	router, _ := newTestServer(staticTokenSource{}, 0)

	resp := doJSON(router, http.MethodPost, "/towns", gin.H{"isPubliclyListed": true})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListTownsHandler_OmitsPasswordsAndPrivateTowns(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)
	public := store.CreateTown("Public", true)
	store.CreateTown("Private", false)

	resp := doJSON(router, http.MethodGet, "/towns", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Towns []map[string]any `json:"towns"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Towns, 1)
	assert.Equal(t, string(public.TownID()), body.Towns[0]["coveyTownID"])

	// Passwords never appear on any read surface.
	assert.NotContains(t, resp.Body.String(), public.UpdatePassword())
	_, hasPassword := body.Towns[0]["townUpdatePassword"]
	assert.False(t, hasPassword)
}

func TestUpdateTownHandler(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)
	ctrl := store.CreateTown("Old", false)

	resp := doJSON(router, http.MethodPatch, "/towns/"+string(ctrl.TownID()), gin.H{
		"coveyTownPassword": ctrl.UpdatePassword(),
		"friendlyName":      "New",
		"isPubliclyListed":  true,
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "New", ctrl.FriendlyName())
	assert.True(t, ctrl.IsPubliclyListed())

	resp = doJSON(router, http.MethodPatch, "/towns/"+string(ctrl.TownID()), gin.H{
		"coveyTownPassword": "wrong",
		"friendlyName":      "Hijacked",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "New", ctrl.FriendlyName())
}

func TestDeleteTownHandler(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)
	ctrl := store.CreateTown("Doomed", true)

	resp := doJSON(router, http.MethodDelete,
		"/towns/"+string(ctrl.TownID())+"/wrong-password", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(router, http.MethodDelete,
		"/towns/"+string(ctrl.TownID())+"/"+ctrl.UpdatePassword(), nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, store.ControllerForTown(ctrl.TownID()))
}

func TestJoinTownHandler(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)
	ctrl := store.CreateTown("Main Street", true)

	resp := doJSON(router, http.MethodPost, "/sessions", gin.H{
		"userName":    "alice",
		"coveyTownID": string(ctrl.TownID()),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		CoveyUserID        string           `json:"coveyUserID"`
		CoveySessionToken  string           `json:"coveySessionToken"`
		ProviderVideoToken string           `json:"providerVideoToken"`
		CurrentPlayers     []map[string]any `json:"currentPlayers"`
		FriendlyName       string           `json:"friendlyName"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CoveyUserID)
	assert.NotEmpty(t, body.CoveySessionToken)
	assert.Equal(t, "test-video-token", body.ProviderVideoToken)
	assert.Equal(t, "Main Street", body.FriendlyName)
	require.Len(t, body.CurrentPlayers, 1)
	assert.Equal(t, "alice", body.CurrentPlayers[0]["userName"])

	// The minted session authenticates against the controller.
	assert.NotNil(t, ctrl.SessionByToken(body.CoveySessionToken))
}

func TestJoinTownHandler_UnknownTown(t *testing.T) {
	router, _ := newTestServer(staticTokenSource{}, 0)

	resp := doJSON(router, http.MethodPost, "/sessions", gin.H{
		"userName":    "alice",
		"coveyTownID": "nowhere",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestJoinTownHandler_TownFull(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 1)
	ctrl := store.CreateTown("Tiny", true)

	resp := doJSON(router, http.MethodPost, "/sessions", gin.H{
		"userName": "alice", "coveyTownID": string(ctrl.TownID()),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(router, http.MethodPost, "/sessions", gin.H{
		"userName": "bob", "coveyTownID": string(ctrl.TownID()),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestJoinTownHandler_TokenMintFailure(t *testing.T) {
	router, store := newTestServer(staticTokenSource{fail: true}, 0)
	ctrl := store.CreateTown("Broken", true)

	resp := doJSON(router, http.MethodPost, "/sessions", gin.H{
		"userName": "alice", "coveyTownID": string(ctrl.TownID()),
	})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Empty(t, ctrl.Players())
}

func TestCreateConversationAreaHandler(t *testing.T) {
	router, store := newTestServer(staticTokenSource{}, 0)
	ctrl := store.CreateTown("Main Street", true)
	player := town.NewPlayer("alice")
	session, err := ctrl.AddPlayer(context.Background(), player)
	require.NoError(t, err)

	areaPayload := gin.H{
		"label":       "porch",
		"topic":       "weather",
		"boundingBox": gin.H{"x": 10, "y": 10, "width": 10, "height": 10},
	}

	// Bad session token.
	resp := doJSON(router, http.MethodPost, "/towns/"+string(ctrl.TownID())+"/conversationAreas", gin.H{
		"sessionToken":     "forged",
		"conversationArea": areaPayload,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// Accepted.
	resp = doJSON(router, http.MethodPost, "/towns/"+string(ctrl.TownID())+"/conversationAreas", gin.H{
		"sessionToken":     session.SessionToken(),
		"conversationArea": areaPayload,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, ctrl.ConversationAreas(), 1)

	// Overlap rejected.
	resp = doJSON(router, http.MethodPost, "/towns/"+string(ctrl.TownID())+"/conversationAreas", gin.H{
		"sessionToken": session.SessionToken(),
		"conversationArea": gin.H{
			"label":       "porch2",
			"topic":       "news",
			"boundingBox": gin.H{"x": 9, "y": 10, "width": 5, "height": 5},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, ctrl.ConversationAreas(), 1)

	// Inactive topic rejected.
	resp = doJSON(router, http.MethodPost, "/towns/"+string(ctrl.TownID())+"/conversationAreas", gin.H{
		"sessionToken": session.SessionToken(),
		"conversationArea": gin.H{
			"label":       "silent",
			"topic":       types.NoTopic,
			"boundingBox": gin.H{"x": 100, "y": 100, "width": 5, "height": 5},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// Package api exposes the REST surface of the towns service: town CRUD,
// session creation (join), and conversation-area creation. Handlers are thin
// glue over the store and controller operations.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/town"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// Handler carries the store every REST operation routes through.
type Handler struct {
	store *town.TownsStore
}

// NewHandler creates the REST handler set.
func NewHandler(store *town.TownsStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the REST surface on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/towns", h.CreateTown)
	r.GET("/towns", h.ListTowns)
	r.PATCH("/towns/:townID", h.UpdateTown)
	r.DELETE("/towns/:townID/:townPassword", h.DeleteTown)
	r.POST("/sessions", h.JoinTown)
	r.POST("/towns/:townID/conversationAreas", h.CreateConversationArea)
}

type createTownRequest struct {
	FriendlyName     string `json:"friendlyName" binding:"required"`
	IsPubliclyListed bool   `json:"isPubliclyListed"`
}

type createTownResponse struct {
	CoveyTownID        types.TownIDType `json:"coveyTownID"`
	TownUpdatePassword string           `json:"townUpdatePassword"`
	FriendlyName       string           `json:"friendlyName"`
	IsPubliclyListed   bool             `json:"isPubliclyListed"`
}

// CreateTown handles POST /towns. The update password is returned here and
// never again.
func (h *Handler) CreateTown(c *gin.Context) {
	var req createTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "friendlyName is required"})
		return
	}

	ctrl := h.store.CreateTown(req.FriendlyName, req.IsPubliclyListed)
	c.JSON(http.StatusOK, createTownResponse{
		CoveyTownID:        ctrl.TownID(),
		TownUpdatePassword: ctrl.UpdatePassword(),
		FriendlyName:       ctrl.FriendlyName(),
		IsPubliclyListed:   ctrl.IsPubliclyListed(),
	})
}

// ListTowns handles GET /towns: publicly-listed towns in creation order.
func (h *Handler) ListTowns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"towns": h.store.Towns()})
}

type updateTownRequest struct {
	CoveyTownPassword string  `json:"coveyTownPassword" binding:"required"`
	FriendlyName      *string `json:"friendlyName"`
	IsPubliclyListed  *bool   `json:"isPubliclyListed"`
}

// UpdateTown handles PATCH /towns/:townID, gated by the update password.
func (h *Handler) UpdateTown(c *gin.Context) {
	var req updateTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coveyTownPassword is required"})
		return
	}

	townID := types.TownIDType(c.Param("townID"))
	ok := h.store.UpdateTown(townID, req.CoveyTownPassword, town.TownSettings{
		FriendlyName:     req.FriendlyName,
		IsPubliclyListed: req.IsPubliclyListed,
	})
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid town or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteTown handles DELETE /towns/:townID/:townPassword. Deletion closes
// every socket subscribed to the town.
func (h *Handler) DeleteTown(c *gin.Context) {
	townID := types.TownIDType(c.Param("townID"))
	password := c.Param("townPassword")

	if !h.store.DeleteTown(townID, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid town or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type joinTownRequest struct {
	UserName    string           `json:"userName" binding:"required"`
	CoveyTownID types.TownIDType `json:"coveyTownID" binding:"required"`
}

type joinTownResponse struct {
	CoveyUserID        types.PlayerIDType `json:"coveyUserID"`
	CoveySessionToken  string             `json:"coveySessionToken"`
	ProviderVideoToken string             `json:"providerVideoToken"`
	CurrentPlayers     []*town.Player     `json:"currentPlayers"`
	FriendlyName       string             `json:"friendlyName"`
	IsPubliclyListed   bool               `json:"isPubliclyListed"`
}

// JoinTown handles POST /sessions: it admits a new player into a town and
// returns the credentials the client needs for its socket subscription and
// video connection.
func (h *Handler) JoinTown(c *gin.Context) {
	var req joinTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userName and coveyTownID are required"})
		return
	}

	ctrl := h.store.ControllerForTown(req.CoveyTownID)
	if ctrl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "town not found"})
		return
	}

	player := town.NewPlayer(req.UserName)
	session, err := ctrl.AddPlayer(c.Request.Context(), player)
	if err != nil {
		if errors.Is(err, town.ErrTownFull) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "town is at capacity"})
			return
		}
		logging.Error(c.Request.Context(), "Failed to mint video token for join",
			zap.String("town_id", string(req.CoveyTownID)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue video token"})
		return
	}

	c.JSON(http.StatusOK, joinTownResponse{
		CoveyUserID:        player.ID(),
		CoveySessionToken:  session.SessionToken(),
		ProviderVideoToken: session.VideoToken(),
		CurrentPlayers:     ctrl.Players(),
		FriendlyName:       ctrl.FriendlyName(),
		IsPubliclyListed:   ctrl.IsPubliclyListed(),
	})
}

type conversationAreaPayload struct {
	Label       string            `json:"label" binding:"required"`
	Topic       string            `json:"topic"`
	BoundingBox types.BoundingBox `json:"boundingBox"`
}

type createAreaRequest struct {
	SessionToken     string                  `json:"sessionToken" binding:"required"`
	ConversationArea conversationAreaPayload `json:"conversationArea" binding:"required"`
}

// CreateConversationArea handles POST /towns/:townID/conversationAreas.
// Rejections (duplicate label, overlap, inactive topic) surface as 400 with
// no state change.
func (h *Handler) CreateConversationArea(c *gin.Context) {
	var req createAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionToken and conversationArea are required"})
		return
	}

	ctrl := h.store.ControllerForTown(types.TownIDType(c.Param("townID")))
	if ctrl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "town not found"})
		return
	}
	if ctrl.SessionByToken(req.SessionToken) == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	area := town.NewConversationArea(req.ConversationArea.Label, req.ConversationArea.Topic, req.ConversationArea.BoundingBox)
	if !ctrl.AddConversationArea(area) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation area rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationArea": area})
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// RoomService is the read side of the signaling core plus room eviction.
type RoomService interface {
	RoomInfo(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	PoolSize(ctx context.Context, ns domain.Namespace) (int, error)
	CloseRoom(ctx context.Context, name domain.RoomName) error
	Lobby() []domain.PresenceEntry
	ActiveChannels() []core.ChannelInfo
}

type PoolResponse struct {
	Namespace domain.Namespace `json:"namespace"`
	Count     int              `json:"count"`
}

type LobbyResponse struct {
	Roster []domain.PresenceEntry `json:"roster"`
}

// Register mounts the introspection API on rg.
func Register(rg *gin.RouterGroup, svc RoomService) {
	h := &handlers{svc: svc}
	rg.GET("/rooms", h.poolSize)
	rg.GET("/rooms/:name", h.getRoom)
	rg.DELETE("/rooms/:name", h.closeRoom)
	rg.GET("/lobby", h.lobby)
	rg.GET("/channels", h.channels)
}

type handlers struct {
	svc RoomService
}

func (h *handlers) poolSize(c *gin.Context) {
	ns := domain.Namespace(c.Query("namespace"))
	if ns == "" {
		ns = domain.NamespaceRoulette
	}
	count, err := h.svc.PoolSize(c.Request.Context(), ns)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, PoolResponse{Namespace: ns, Count: count})
}

func (h *handlers) getRoom(c *gin.Context) {
	name, ok := roomParam(c)
	if !ok {
		return
	}
	room, err := h.svc.RoomInfo(c.Request.Context(), name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handlers) closeRoom(c *gin.Context) {
	name, ok := roomParam(c)
	if !ok {
		return
	}
	if err := h.svc.CloseRoom(c.Request.Context(), name); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) lobby(c *gin.Context) {
	c.JSON(http.StatusOK, LobbyResponse{Roster: h.svc.Lobby()})
}

func (h *handlers) channels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.svc.ActiveChannels()})
}

func roomParam(c *gin.Context) (domain.RoomName, bool) {
	name := domain.RoomName(c.Param("name"))
	if err := domain.ValidateRoomName(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return name, true
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	default:
		log.Error().Err(err).Str("module", "transport.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failure"})
	}
}

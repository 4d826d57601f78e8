package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/response"
	"github.com/stemsi/classcard/internal/service"
	"github.com/stemsi/classcard/internal/view"
	ws "github.com/stemsi/classcard/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live summary cards.
type WSHandler struct {
	classService *service.ClassService
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(classService *service.ClassService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		classService: classService,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
	}
}

// CardStream godoc
// WS /ws/v1/classes/:id/card
// Sends the class card on connect and again after every change to the class.
func (h *WSHandler) CardStream(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Resolve before upgrading so a missing class is a plain 404.
	if _, err := h.classService.Summary(c.Request.Context(), classID); err != nil {
		if errors.Is(err, service.ErrClassNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int("class_id", classID).Logger()
	wsLog.Debug().Msg("Card stream connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the first push so a change committed in between
	// is still delivered.
	pubsub := h.classService.SubscribeChanges(ctx, classID)
	if pubsub == nil {
		if err := h.pushCard(ctx, conn, classID); err == nil {
			ws.WriteError(conn, "live updates are disabled")
		}
		return
	}
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		wsLog.Warn().Err(err).Msg("Subscribe to class changes failed")
		ws.WriteError(conn, "live updates are unavailable")
		return
	}

	if err := h.pushCard(ctx, conn, classID); err != nil {
		wsLog.Debug().Err(err).Msg("Initial card push failed")
		return
	}

	done := make(chan struct{})
	go ws.DrainReads(conn, done)

	changes := pubsub.Channel()
	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Card stream closed")
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := h.pushCard(ctx, conn, classID); err != nil {
				if errors.Is(err, service.ErrClassNotFound) {
					ws.WriteError(conn, "class deleted")
					return
				}
				wsLog.Warn().Err(err).Msg("Card push failed")
				return
			}
		}
	}
}

func (h *WSHandler) pushCard(ctx context.Context, conn *websocket.Conn, classID int) error {
	summary, err := h.classService.Summary(ctx, classID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := view.SummaryView(view.FromSummary(*summary)).Render(ctx, &buf); err != nil {
		return err
	}

	return ws.WriteTyped(conn, ws.CardResponse{
		Event:        ws.EventCard,
		ClassID:      classID,
		StudentCount: summary.StudentCount,
		HTML:         buf.String(),
	})
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// createMeeting retries a few times in case a fresh code collides.
const createAttempts = 3

type handlers struct {
	deps      Deps
	publicURL string
}

type sessionRequest struct {
	UserID string `json:"userId" binding:"required,max=64"`
}

type createMeetingRequest struct {
	HostID string `json:"hostId" binding:"max=64"`
	Type   string `json:"type" binding:"omitempty,oneof=instant scheduled"`
}

type personaRequest struct {
	Prompt string `json:"prompt" binding:"required,max=8000"`
}

func (h *handlers) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}
	sess := sessions.Default(c)
	sess.Set(sessionUserKey, req.UserID)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": req.UserID})
}

func (h *handlers) clearSession(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *handlers) createMeeting(c *gin.Context) {
	var req createMeetingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting request"})
			return
		}
	}
	if req.Type == "" {
		req.Type = "instant"
	}
	hostID := domain.UserID(req.HostID)
	if hostID == "" {
		uid, _ := sessions.Default(c).Get(sessionUserKey).(string)
		hostID = domain.UserID(uid)
	}

	for range createAttempts {
		m := domain.Meeting{
			ID:        domain.NewMeetingCode(),
			HostID:    hostID,
			Type:      req.Type,
			Status:    domain.MeetingActive,
			CreatedAt: time.Now().UTC(),
		}
		err := h.deps.Store.CreateMeeting(c.Request.Context(), m)
		if errors.Is(err, core.ErrDuplicate) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("create meeting")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create meeting"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("meeting", string(m.ID)).Msg("meeting created")
		c.JSON(http.StatusCreated, gin.H{"meetingId": m.ID, "url": h.publicURL + "/meet/" + string(m.ID)})
		return
	}
	c.JSON(http.StatusConflict, gin.H{"error": "could not allocate meeting code"})
}

func (h *handlers) getMeeting(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	m, err := h.deps.Store.GetMeeting(c.Request.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Str("meeting", string(id)).Msg("get meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
	default:
		c.JSON(http.StatusOK, m)
	}
}

func (h *handlers) validateMeeting(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	if domain.CheckMeetingID(id) != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	ok, err := h.deps.Store.Exists(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("meeting", string(id)).Msg("validate meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}

func (h *handlers) meetingTranscripts(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	history, err := h.deps.Store.TranscriptHistory(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("meeting", string(id)).Msg("transcripts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcripts unavailable"})
		return
	}
	if history == nil {
		history = []domain.TranscriptLine{}
	}
	c.JSON(http.StatusOK, core.TranscriptHistory{MeetingID: id, History: history})
}

func (h *handlers) savePersona(c *gin.Context) {
	uid := c.Param("userId")
	if uid == "" || len(uid) > domain.MaxUserIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}
	var req personaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prompt"})
		return
	}
	if err := h.deps.Store.SaveSystemPrompt(c.Request.Context(), domain.UserID(uid), req.Prompt); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("user", uid).Msg("save persona")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save persona"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.deps.Orch.Rooms.List()})
}

func (h *handlers) roomParticipants(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	room, ok := h.deps.Orch.Rooms.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting is not live"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meetingId":    id,
		"participants": room.Participants(),
		"delegates":    room.Delegates(),
	})
}

func (h *handlers) rtcConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.RTC)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.deps.Orch.Registry.Count(),
		"rooms":       h.deps.Orch.Rooms.Len(),
	})
}

// Package api exposes room creation, host actions and the websocket entry
// point over gin.
package api

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"quiz-lab/auth"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"quiz-lab/infrastructure/ws"
	"quiz-lab/services"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const identityKey = "identity"

// QuestionSets stores uploaded question sets.
type QuestionSets interface {
	PutSet(setID string, questions []domain.Question) error
}

type Handler struct {
	log     *slog.Logger
	tokens  *auth.Tokens
	game    *services.Game
	hosts   *services.HostService
	router  *ws.Router
	sets    QuestionSets
	devAuth bool
}

func NewHandler(log *slog.Logger, tokens *auth.Tokens, game *services.Game, hosts *services.HostService,
	router *ws.Router, sets QuestionSets, devAuth bool) *Handler {
	return &Handler{log: log, tokens: tokens, game: game, hosts: hosts, router: router, sets: sets, devAuth: devAuth}
}

// Engine builds the gin engine with every route.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if h.devAuth {
		r.POST("/api/tokens", h.IssueToken)
	}
	r.GET("/ws/rooms/:code", h.JWTAuth(true), h.ServeWS)

	api := r.Group("/api")
	api.Use(h.JWTAuth(false))
	{
		api.PUT("/question-sets/:id", h.PutQuestionSet)
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:code", h.GetRoom)
		api.GET("/games/:id", h.GetGame)
		api.POST("/rooms/:code/actions/:action", h.HostAction)
	}
	return r
}

// JWTAuth resolves the caller from a bearer token. Websocket clients may
// pass it as the token query parameter instead.
func (h *Handler) JWTAuth(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Describe(errors.ErrInvalidToken))
				return
			}
			token = parts[1]
		} else if allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Describe(errors.ErrInvalidToken))
			return
		}
		id, err := h.tokens.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Describe(err))
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func caller(c *gin.Context) domain.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(domain.Identity)
	return id
}

// StatusOf maps the error taxonomy onto HTTP statuses.
func StatusOf(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound), stderrors.Is(err, errors.ErrPlayerNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrNotAuthorized), stderrors.Is(err, errors.ErrPlayerKicked):
		return http.StatusForbidden
	case stderrors.Is(err, errors.ErrInvalidToken):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrInvalidState), stderrors.Is(err, errors.ErrAlreadyAnswered):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrRoomFull), stderrors.Is(err, errors.ErrPlayerMuted):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, errors.Describe(err))
}

type tokenRequest struct {
	Name   string `json:"name" binding:"required"`
	IsHost bool   `json:"isHost"`
}

// IssueToken hands out a token for a fresh identity. Only mounted when
// development authentication is enabled.
func (h *Handler) IssueToken(c *gin.Context) {
	var body tokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, stderrors.Join(errors.ErrInvalidInput, err))
		return
	}
	id := domain.Identity{ID: domain.PlayerID(uuid.NewString()), Name: body.Name, IsHost: body.IsHost}
	token, err := h.tokens.GenerateToken(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "identity": id})
}

type questionSetRequest struct {
	Questions []domain.Question `json:"questions" binding:"required"`
}

func (h *Handler) PutQuestionSet(c *gin.Context) {
	if !caller(c).IsHost {
		h.fail(c, errors.ErrNotAuthorized)
		return
	}
	var body questionSetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, stderrors.Join(errors.ErrInvalidInput, err))
		return
	}
	if err := h.sets.PutSet(c.Param("id"), body.Questions); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "count": len(body.Questions)})
}

type createRoomRequest struct {
	QuestionSetID string           `json:"questionSetId" binding:"required"`
	HostName      string           `json:"hostName"`
	Settings      *domain.Settings `json:"settings"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	id := caller(c)
	if !id.IsHost {
		h.fail(c, errors.ErrNotAuthorized)
		return
	}
	var body createRoomRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, stderrors.Join(errors.ErrInvalidInput, err))
		return
	}
	code, err := h.game.CreateRoom(c.Request.Context(), services.CreateRoomRequest{
		Host:          id,
		HostName:      body.HostName,
		QuestionSetID: body.QuestionSetID,
		Settings:      body.Settings,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	snap, err := h.game.Snapshot(code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetRoom(c *gin.Context) {
	snap, err := h.game.Snapshot(domain.RoomCode(c.Param("code")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetGame(c *gin.Context) {
	snap, err := h.game.FindByExternalGameID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HostAction runs one host action. The body carries the action arguments.
func (h *Handler) HostAction(c *gin.Context) {
	var cmd services.HostCommand
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&cmd); err != nil {
			h.fail(c, stderrors.Join(errors.ErrInvalidInput, err))
			return
		}
	}
	cmd.Room = domain.RoomCode(c.Param("code"))
	cmd.Action = services.Action(c.Param("action"))

	res, err := h.hosts.Dispatch(c.Request.Context(), caller(c), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ServeWS(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))
	if _, err := h.game.Snapshot(code); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.router.Serve(c.Writer, c.Request, code, caller(c)); err != nil {
		h.log.Debug("Websocket session ended with error", "room", code, "error", err)
	}
}

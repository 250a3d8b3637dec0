// Package httpapi serves the standalone game server: a JSON API for lookups and a
// websocket endpoint that carries intents and frames.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codeduel/internal/app"
	"codeduel/internal/ports"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// Server wires the hub and the optional stores into gin handlers.
type Server struct {
	hub      *Hub
	results  ports.ResultStore
	stats    ports.StatsPort
	origins  []string
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer builds the HTTP surface. results and stats may be nil when no store is
// configured; the matching endpoints then answer 503.
func NewServer(hub *Hub, results ports.ResultStore, stats ports.StatsPort, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		hub:     hub,
		results: results,
		stats:   stats,
		origins: hub.cfg.Server.AllowedOrigins,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router returns the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/cards", s.listCards)
		api.GET("/rooms", s.listRooms)
		api.GET("/rooms/:code", s.getRoom)
		api.POST("/legal-insertions", s.legalInsertions)
		api.GET("/leaderboard", s.leaderboard)
		api.GET("/stats/:user", s.playerStats)
	}

	r.GET("/ws", s.serveWS)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if s.allowAll() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cfg
}

func (s *Server) allowAll() bool {
	if len(s.origins) == 0 {
		return true
	}
	for _, o := range s.origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowAll() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) listCards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cards": app.CatalogInfo()})
}

func (s *Server) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.hub.Registry().ListOpenRooms()})
}

// getRoom returns the spectator view of a room.
func (s *Server) getRoom(c *gin.Context) {
	room, err := s.hub.Registry().Get(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot(""))
}

func (s *Server) legalInsertions(c *gin.Context) {
	var q app.InsertionQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		writeError(c, errBadFrame)
		return
	}
	res, err := app.QueryInsertions(q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) leaderboard(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, app.ErrorPayload{Code: "unavailable", Message: "leaderboard store not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboardLimit)))
	if err != nil || limit <= 0 || limit > maxLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}
	entries, err := s.results.TopPlayers(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("leaderboard query failed", zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) playerStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusServiceUnavailable, app.ErrorPayload{Code: "unavailable", Message: "stats store not configured"})
		return
	}
	stats, err := s.stats.GetStats(c.Request.Context(), c.Param("user"))
	if err != nil {
		s.logger.Error("stats query failed", zap.String("user", c.Param("user")), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// serveWS upgrades the request and starts the client pumps. A ?token= query
// parameter resumes an earlier session.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(s.hub, conn)
	s.hub.register(client)

	go client.writePump()
	if token := c.Query("token"); token != "" {
		s.hub.resume(client, token)
	}
	go client.readPump()
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), app.ErrorPayload{Code: app.ErrorCode(err), Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrRoomNotFound), errors.Is(err, app.ErrUnknownPlayer):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidMove), errors.Is(err, app.ErrInvalidRoomCode):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrRoomFull), errors.Is(err, app.ErrAlreadySeated), errors.Is(err, app.ErrGameAlreadyOver):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

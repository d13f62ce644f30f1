package shard

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Server hosts one column index for many rooms. Each room gets its own
// in-process Column the first time it is addressed.
type Server struct {
	index    int
	columns  map[string]*Column
	released OperationStats // counters of columns already dropped
	mu       sync.RWMutex
	log      zerolog.Logger
}

func NewServer(index int, log zerolog.Logger) *Server {
	return &Server{
		index:   index,
		columns: make(map[string]*Column),
		log:     log.With().Str("component", "shard").Int("column", index).Logger(),
	}
}

// Register mounts the column node routes on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", s.health)

	rooms := r.Group("/rooms/:room")
	rooms.POST("/reset", s.reset)
	rooms.POST("/drop", s.drop)
	rooms.POST("/bomb", s.bomb)
	rooms.POST("/undo", s.undo)
	rooms.POST("/block", s.block)
	rooms.POST("/tick", s.tick)
	rooms.POST("/replace", s.replace)
	rooms.GET("/state", s.state)
	rooms.DELETE("", s.release)
}

// Rooms returns how many rooms this node currently holds a column for.
func (s *Server) Rooms() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.columns)
}

// Stats sums the operation counters of every room column held here.
// Counters of released rooms are kept in the total.
func (s *Server) Stats() OperationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.released
	for _, col := range s.columns {
		total.add(col.Stats())
	}
	return total
}

func (s *Server) column(roomID string) *Column {
	s.mu.RLock()
	col, ok := s.columns[roomID]
	s.mu.RUnlock()
	if ok {
		return col
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok = s.columns[roomID]; ok {
		return col
	}
	col = NewColumn(s.index)
	s.columns[roomID] = col
	return col
}

func (s *Server) fail(c *gin.Context, err error) {
	var de domain.Error
	if errors.As(err, &de) {
		c.JSON(http.StatusConflict, errorResponse{Error: de.Error()})
		return
	}
	s.log.Error().Err(err).Str("room", c.Param("room")).Msg("column operation failed")
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "column": s.index, "rooms": s.Rooms(), "operations": s.Stats()})
}

func (s *Server) reset(c *gin.Context) {
	if err := s.column(c.Param("room")).Reset(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) drop(c *gin.Context) {
	var req dropRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "player_id is required"})
		return
	}
	row, err := s.column(c.Param("room")).Drop(c.Request.Context(), req.PlayerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dropResponse{Row: row})
}

func (s *Server) bomb(c *gin.Context) {
	cleared, err := s.column(c.Param("room")).Bomb(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bombResponse{Cleared: cleared})
}

func (s *Server) undo(c *gin.Context) {
	removed, err := s.column(c.Param("room")).UndoLast(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, undoResponse{Removed: removed})
}

func (s *Server) block(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "turns is required"})
		return
	}
	if err := s.column(c.Param("room")).Block(c.Request.Context(), req.Turns); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) tick(c *gin.Context) {
	left, err := s.column(c.Param("room")).TickBlock(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tickResponse{BlockedTurns: left})
}

func (s *Server) replace(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "discs are required"})
		return
	}
	if err := s.column(c.Param("room")).Replace(c.Request.Context(), req.Discs); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) state(c *gin.Context) {
	st, err := s.column(c.Param("room")).Query(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) release(c *gin.Context) {
	s.mu.Lock()
	if col, ok := s.columns[c.Param("room")]; ok {
		s.released.add(col.Stats())
		delete(s.columns, c.Param("room"))
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

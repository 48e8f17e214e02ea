package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentmem/somnia/internal/core"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/core/sleep"
	"github.com/agentmem/somnia/internal/driver"
)

// Server exposes the engine over HTTP.
type Server struct {
	Engine *core.Engine
}

func NewServer(engine *core.Engine) *Server {
	return &Server{Engine: engine}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/episodes", s.AddEpisode)
	r.POST("/search", s.Search)
	r.POST("/traverse", s.Traverse)

	r.GET("/nodes/:uuid", s.GetNode)
	r.DELETE("/nodes/:uuid", s.DeleteNode)
	r.GET("/edges/:uuid", s.GetEdge)
	r.DELETE("/edges/:uuid", s.DeleteEdge)
	r.GET("/episodes/recent", s.RecentEpisodes)

	r.POST("/sleep", s.Sleep)
	r.POST("/sleep/schedule", s.ScheduleSleep)
	r.DELETE("/sleep/schedule", s.UnscheduleSleep)

	r.GET("/health", s.Health)

	return r
}

func (s *Server) AddEpisode(c *gin.Context) {
	var req core.EpisodeParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	episode, err := s.Engine.AddEpisode(c.Request.Context(), req)
	if err != nil {
		log.Printf("failed to add episode: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"episode": episode})
}

func (s *Server) Search(c *gin.Context) {
	var req model.SearchParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	results, err := s.Engine.Search(c.Request.Context(), req)
	if err != nil {
		log.Printf("failed to search: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) Traverse(c *gin.Context) {
	var req model.TraverseParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := s.Engine.Traverse(c.Request.Context(), req)
	if errors.Is(err, driver.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "start entity not found"})
		return
	}
	if err != nil {
		log.Printf("failed to traverse: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetNode(c *gin.Context) {
	node, err := s.Engine.GetNode(c.Request.Context(), c.Param("uuid"))
	if errors.Is(err, driver.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	if err != nil {
		log.Printf("failed to get node: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"node": node, "label": node.Label()})
}

func (s *Server) DeleteNode(c *gin.Context) {
	if err := s.Engine.DeleteNode(c.Request.Context(), c.Param("uuid")); err != nil {
		log.Printf("failed to delete node: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) GetEdge(c *gin.Context) {
	edge, err := s.Engine.GetEdge(c.Request.Context(), c.Param("uuid"))
	if errors.Is(err, driver.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "edge not found"})
		return
	}
	if err != nil {
		log.Printf("failed to get edge: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"edge": edge})
}

func (s *Server) DeleteEdge(c *gin.Context) {
	if err := s.Engine.DeleteEdge(c.Request.Context(), c.Param("uuid")); err != nil {
		log.Printf("failed to delete edge: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) RecentEpisodes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	episodes, err := s.Engine.GetRecentEpisodes(c.Request.Context(), c.Query("group_id"), limit)
	if err != nil {
		log.Printf("failed to list episodes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes": episodes})
}

type SleepRequest struct {
	GroupID    string              `json:"group_id"`
	STMGroupID string              `json:"stm_group_id"`
	LTMGroupID string              `json:"ltm_group_id"`
	Options    *model.SleepOptions `json:"options"`
}

func (r SleepRequest) target() model.SleepTarget {
	return model.SleepTarget{
		GroupID:    r.GroupID,
		STMGroupID: r.STMGroupID,
		LTMGroupID: r.LTMGroupID,
	}
}

func (r SleepRequest) options() model.SleepOptions {
	if r.Options == nil {
		return model.DefaultSleepOptions()
	}
	return *r.Options
}

func (s *Server) Sleep(c *gin.Context) {
	var req SleepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	report, err := s.Engine.Sleep(c.Request.Context(), req.target(), req.options())
	if err != nil {
		log.Printf("sleep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

type ScheduleRequest struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	SleepRequest
}

func (s *Server) ScheduleSleep(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := s.Engine.StartAutoSleep(sleep.AutoSleepConfig{
		Hour:    req.Hour,
		Minute:  req.Minute,
		Target:  req.target(),
		Options: req.options(),
		OnError: func(err error) { log.Printf("scheduled sleep failed: %v", err) },
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "scheduled"})
}

func (s *Server) UnscheduleSleep(c *gin.Context) {
	s.Engine.StopAutoSleep()
	c.JSON(http.StatusOK, gin.H{"status": "unscheduled"})
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

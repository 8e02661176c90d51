package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planner/internal/model"
	"planner/internal/recurrence"
)

type seriesView struct {
	model.Series
	Preview string `json:"preview"`
}

func (s *Server) handleListSeries(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	list, err := s.tasks.ListSeries(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]seriesView, 0, len(list))
	for _, sr := range list {
		views = append(views, seriesView{Series: sr, Preview: recurrence.FormatPreview(sr.Rule)})
	}
	respondSuccess(c, http.StatusOK, gin.H{"series": views})
}

func (s *Server) handlePauseSeries(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	if err := s.tasks.PauseSeries(c.Request.Context(), user, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) handleResumeSeries(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	if err := s.tasks.ResumeSeries(c.Request.Context(), user, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "active"})
}

func (s *Server) handleRunGeneration(c *gin.Context) {
	report, err := s.generation.RunNow(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if report.Dropped {
		status = http.StatusAccepted
	}
	respondSuccess(c, status, report)
}

func (s *Server) handleGenerationStats(c *gin.Context) {
	stats, err := s.generation.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/series"
	"planner/internal/service"
)

const dateLayout = "2006-01-02"

type recurrenceRequest struct {
	Pattern             string  `json:"pattern"`
	Frequency           int     `json:"frequency"`
	DaysOfWeek          []int   `json:"days_of_week"`
	DayOfMonth          int     `json:"day_of_month"`
	StartDate           string  `json:"start_date"`
	EndDate             *string `json:"end_date"`
	EndAfterOccurrences *int    `json:"end_after_occurrences"`
}

// rule converts the request into a recurrence rule. A missing frequency
// means 1; dates use YYYY-MM-DD.
func (r recurrenceRequest) rule() (recurrence.Rule, error) {
	rule := recurrence.Rule{
		Pattern:             recurrence.ParsePattern(r.Pattern),
		Frequency:           r.Frequency,
		DaysOfWeek:          r.DaysOfWeek,
		DayOfMonth:          r.DayOfMonth,
		EndAfterOccurrences: r.EndAfterOccurrences,
	}
	if rule.Frequency == 0 {
		rule.Frequency = 1
	}
	if r.StartDate != "" {
		start, err := time.Parse(dateLayout, strings.TrimSpace(r.StartDate))
		if err != nil {
			return rule, fmt.Errorf("invalid start_date: %w", err)
		}
		rule.StartDate = start
	}
	if r.EndDate != nil && *r.EndDate != "" {
		end, err := time.Parse(dateLayout, strings.TrimSpace(*r.EndDate))
		if err != nil {
			return rule, fmt.Errorf("invalid end_date: %w", err)
		}
		rule.EndDate = &end
	}
	return rule, nil
}

type createTaskRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Priority    string             `json:"priority"`
	Reminder    bool               `json:"reminder"`
	Deadline    *time.Time         `json:"deadline"`
	Recurrence  *recurrenceRequest `json:"recurrence"`
}

type patchTaskRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Priority      *string `json:"priority"`
	Reminder      *bool   `json:"reminder"`
	CategoryID    *uint   `json:"category_id"`
	ClearCategory bool    `json:"clear_category"`
}

func (r patchTaskRequest) patch() series.TemplatePatch {
	p := series.TemplatePatch{
		Title:         r.Title,
		Description:   r.Description,
		Reminder:      r.Reminder,
		CategoryID:    r.CategoryID,
		ClearCategory: r.ClearCategory,
	}
	if r.Priority != nil {
		priority := model.ParsePriority(*r.Priority)
		p.Priority = &priority
	}
	return p
}

func (s *Server) handlePreview(c *gin.Context) {
	var req recurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	rule, err := req.rule()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, service.PreviewRule(rule, s.now()))
}

func (s *Server) handleListTasks(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	tasks, err := s.tasks.ListOpen(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    model.Priority(req.Priority),
		Reminder:    req.Reminder,
		Deadline:    req.Deadline,
	}
	if req.Recurrence != nil {
		rule, err := req.Recurrence.rule()
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		input.Recurrence = &rule
	}

	res, err := s.tasks.CreateTask(c.Request.Context(), user, input)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, res)
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	task, err := s.tasks.CompleteTask(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleSkipTask(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	task, err := s.tasks.SkipTask(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleAffected(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	scope, ok := s.parseScope(c)
	if !ok {
		return
	}
	count, err := s.tasks.CountAffected(c.Request.Context(), user, c.Param("id"), scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"scope": scope, "count": count})
}

func (s *Server) handleEditTask(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	scope, ok := s.parseScope(c)
	if !ok {
		return
	}
	var req patchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	updated, err := s.tasks.EditTask(c.Request.Context(), user, c.Param("id"), scope, req.patch())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	scope, ok := s.parseScope(c)
	if !ok {
		return
	}
	deleted, err := s.tasks.DeleteTask(c.Request.Context(), user, c.Param("id"), scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": deleted})
}

package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/history"
	"github.com/unkn0wn-root/curlparse/internal/jobsource"
	"github.com/unkn0wn-root/curlparse/internal/telemetry"
)

const (
	historyLimitDefault = 50
	historyLimitMax     = 500
	traceSource         = "api"
)

type parseRequest struct {
	Command string `json:"command"`
}

type jobSourceRequest struct {
	Name    string          `json:"name"`
	Command string          `json:"command"`
	Paths   jobsource.Paths `json:"paths"`
	// Sample is an optional API response used to preview extraction.
	Sample json.RawMessage `json:"sample_response,omitempty"`
}

type jobSourceResponse struct {
	Source  jobsource.Source   `json:"source"`
	Row     jobsource.Row      `json:"row"`
	Preview *jobsource.Preview `json:"preview,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.parseOne(c.Request.Context(), req.Command))
}

func (s *Server) parseAll(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	cmds := curl.SplitCommands(req.Command)
	if len(cmds) == 0 {
		cmds = []string{req.Command}
	}
	results := make([]curl.Result, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, s.parseOne(ctx, cmd))
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) jobSource(c *gin.Context) {
	var req jobSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	res := s.parseOne(c.Request.Context(), req.Command)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error})
		return
	}
	src, err := jobsource.FromRequest(req.Name, res.Request, req.Paths)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	row, err := src.Row()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	out := jobSourceResponse{Source: src, Row: row}
	if len(req.Sample) > 0 {
		preview, err := src.PreviewResponse(req.Sample)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		out.Preview = &preview
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit := historyLimitDefault
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, historyLimitMax)
	}

	entries, err := s.history.Entries(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	entry, ok, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load entry: " + err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) deleteHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	removed, err := s.history.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete entry: " + err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// parseOne traces and records a single parse. History failures are logged,
// never surfaced to the caller.
func (s *Server) parseOne(ctx context.Context, cmd string) curl.Result {
	res := curl.NewResult(telemetry.TracedParse(ctx, s.tel, s.parser, cmd, traceSource))
	if s.history != nil {
		entry := history.EntryFromResult(cmd, res, s.now())
		if _, err := s.history.Append(ctx, entry); err != nil {
			log.Printf("history append failed: %v", err)
		}
	}
	return res
}

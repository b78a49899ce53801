package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/givddul/issuerelay/internal/gitlab"
)

type createIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type addNoteRequest struct {
	Body string `json:"body"`
}

type setStateRequest struct {
	StateEvent string `json:"state_event"`
}

// listIssues handles GET /api/issues. The response is always the full
// sequence of issues with their notes, possibly empty. A provider failure is
// surfaced as 502 rather than masked as an empty listing.
func (s *Server) listIssues(c echo.Context) error {
	issues, err := s.issues.ListIssuesWithNotes(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list issues")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream unavailable",
		})
	}

	if issues == nil {
		issues = []gitlab.Issue{}
	}
	return c.JSON(http.StatusOK, issues)
}

// createIssue handles POST /api/issues
func (s *Server) createIssue(c echo.Context) error {
	var req createIssueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	if _, err := s.issues.CreateIssue(c.Request().Context(), req.Title, req.Description); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("failed to create issue")
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusCreated)
}

// addNote handles POST /api/issues/:iid/notes
func (s *Server) addNote(c echo.Context) error {
	iid, err := strconv.Atoi(c.Param("iid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue iid")
	}

	var req addNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "note body is required")
	}

	note, err := s.issues.AddNote(c.Request().Context(), iid, req.Body)
	if err != nil {
		log.Error().Err(err).Int("iid", iid).Msg("failed to add note")
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Note added successfully",
		"note":    note,
	})
}

// setIssueState handles PUT /api/issues/:iid
func (s *Server) setIssueState(c echo.Context) error {
	iid, err := strconv.Atoi(c.Param("iid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue iid")
	}

	var req setStateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StateEvent != "close" && req.StateEvent != "reopen" {
		return echo.NewHTTPError(http.StatusBadRequest, "state_event must be close or reopen")
	}

	if err := s.issues.SetIssueState(c.Request().Context(), iid, req.StateEvent); err != nil {
		log.Error().Err(err).Int("iid", iid).Str("state_event", req.StateEvent).Msg("failed to set issue state")
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusOK)
}

package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type createBanRequest struct {
	Hwid   string `json:"hwid" validate:"required"`
	Reason string `json:"reason"`
}

func (s *Server) handleListBans(c echo.Context) error {
	bans, err := s.store.ListBans(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list bans")
	}
	return c.JSON(http.StatusOK, bans)
}

func (s *Server) handleCreateBan(c echo.Context) error {
	var req createBanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Hwid is required")
	}

	ban, err := s.store.Ban(c.Request().Context(), req.Hwid, req.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create ban")
	}
	return c.JSON(http.StatusCreated, ban)
}

func (s *Server) handleDeleteBan(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ban id")
	}
	if err := s.store.DeleteBan(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete ban")
	}
	return c.NoContent(http.StatusNoContent)
}

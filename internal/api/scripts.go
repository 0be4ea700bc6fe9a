package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scriptguard/internal/api/auth"
	"github.com/scriptguard/internal/authoring"
)

type saveScriptRequest struct {
	Content      string `json:"content" validate:"required"`
	IsObfuscated bool   `json:"is_obfuscated"`
}

func (s *Server) handleGetScript(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid product id")
	}

	script, err := s.store.GetScriptByProductID(c.Request().Context(), productID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load script")
	}
	if script == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Script not found")
	}
	return c.JSON(http.StatusOK, script)
}

// handleSaveScript upserts the product's script. When is_obfuscated is
// set the save consumes one unit of the account's monthly quota; a
// quota rejection reports the tier and limit and changes nothing.
func (s *Server) handleSaveScript(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid product id")
	}

	var req saveScriptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Script content is required")
	}

	account := auth.AccountFromContext(c)
	script, err := s.authoring.SaveScript(c.Request().Context(), account, productID, req.Content, req.IsObfuscated)
	var qerr *authoring.QuotaExceededError
	if errors.As(err, &qerr) {
		return echo.NewHTTPError(http.StatusForbidden, qerr.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save script")
	}
	return c.JSON(http.StatusOK, script)
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scriptguard/internal/store"
	"github.com/scriptguard/pkg/models"
)

type createLicenseRequest struct {
	// Key is optional; a random one is generated when omitted.
	Key       string `json:"key"`
	ProductID int64  `json:"product_id" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=active suspended revoked"`
}

func (s *Server) handleListLicenses(c echo.Context) error {
	licenses, err := s.store.ListLicenses(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list licenses")
	}
	return c.JSON(http.StatusOK, licenses)
}

func (s *Server) handleCreateLicense(c echo.Context) error {
	var req createLicenseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Product id is required")
	}

	license, err := s.store.CreateLicense(c.Request().Context(), req.Key, req.ProductID, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create license")
	}
	return c.JSON(http.StatusCreated, license)
}

func (s *Server) handleDeleteLicense(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid license id")
	}
	if err := s.store.DeleteLicense(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete license")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleResetLicenseHwid clears the device binding so a new device can
// claim the license. This is the only path that unsets bound_hwid.
func (s *Server) handleResetLicenseHwid(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid license id")
	}

	license, err := s.store.ResetBinding(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "License not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reset license")
	}
	return c.JSON(http.StatusOK, license)
}

type updateLicenseStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended revoked"`
}

func (s *Server) handleUpdateLicenseStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid license id")
	}

	var req updateLicenseStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Status must be one of: "+models.LicenseStatusActive+", "+models.LicenseStatusSuspended+", "+models.LicenseStatusRevoked)
	}

	license, err := s.store.UpdateLicenseStatus(c.Request().Context(), id, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "License not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update license")
	}
	return c.JSON(http.StatusOK, license)
}

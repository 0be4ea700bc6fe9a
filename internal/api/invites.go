package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scriptguard/internal/api/auth"
	"github.com/scriptguard/internal/authoring"
	"github.com/scriptguard/internal/store"
)

type createInviteRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free pro enterprise"`
}

func (s *Server) handleCreateInvite(c echo.Context) error {
	var req createInviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Tier must be one of: free, pro, enterprise")
	}

	invite, err := s.store.CreateInvite(c.Request().Context(), req.Tier)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create invite")
	}
	return c.JSON(http.StatusCreated, invite)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

type redeemResponse struct {
	Success bool   `json:"success"`
	Tier    string `json:"tier"`
}

// handleRedeemInvite consumes a one-time code and upgrades the calling
// account's tier. Unknown and already-used codes get the same answer so
// codes cannot be enumerated.
func (s *Server) handleRedeemInvite(c echo.Context) error {
	var req redeemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Code is required")
	}

	account := auth.AccountFromContext(c)
	tier, err := s.store.RedeemInvite(c.Request().Context(), req.Code, account.ID)
	if errors.Is(err, store.ErrInviteInvalid) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid or used invite code")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to redeem invite")
	}
	return c.JSON(http.StatusOK, redeemResponse{Success: true, Tier: tier})
}

type quotaStatusResponse struct {
	Tier  string `json:"tier"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

func (s *Server) handleQuotaStatus(c echo.Context) error {
	account := auth.AccountFromContext(c)
	used, limit, err := s.authoring.QuotaStatus(c.Request().Context(), account)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load quota")
	}
	// Report the tier the limit was computed from, not the raw column.
	return c.JSON(http.StatusOK, quotaStatusResponse{Tier: authoring.EffectiveTier(account.Tier), Used: used, Limit: limit})
}

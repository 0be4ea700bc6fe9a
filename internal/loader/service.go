// Package loader implements the authentication state machine for the
// public loader endpoint: ban check, key lookup, hwid binding, and
// script delivery, with one audit row per attempt.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scriptguard/internal/encoder"
	"github.com/scriptguard/internal/metrics"
	"github.com/scriptguard/pkg/models"
)

// Store is the slice of the persistence layer the orchestrator needs.
// *store.Storage satisfies it; tests substitute fakes.
type Store interface {
	IsBanned(ctx context.Context, hwid string) (bool, error)
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	GetLicense(ctx context.Context, id int64) (*models.License, error)
	BindHwid(ctx context.Context, id int64, hwid, ip string, now time.Time) (bool, error)
	TouchLicense(ctx context.Context, id int64, ip string, now time.Time) error
	GetScriptByProductID(ctx context.Context, productID int64) (*models.Script, error)
	AppendLog(ctx context.Context, entry *models.ExecutionLog) error
}

// AuthRequest carries one loader authentication attempt.
type AuthRequest struct {
	Key      string
	Hwid     string
	Executor string
	IP       string
}

// AuthResult is the caller-visible outcome. Rejections are values, not
// errors: Valid is false and Message says only what the client needs to
// know. The audit log keeps the precise reason.
type AuthResult struct {
	Valid   bool   `json:"valid"`
	Script  string `json:"script,omitempty"`
	Message string `json:"message"`
}

// Service is the authentication orchestrator.
type Service struct {
	store Store
	enc   encoder.Encoder
	now   func() time.Time
}

func NewService(store Store, enc encoder.Encoder) *Service {
	return &Service{store: store, enc: enc, now: time.Now}
}

// Authenticate runs the state machine. States are evaluated in strict
// order and each is terminal on match; ban precedes key lookup so a
// banned device never learns whether its key is valid, and no rejected
// path mutates the license. Every terminal branch writes exactly one
// audit row.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	banned, err := s.store.IsBanned(ctx, req.Hwid)
	if err != nil {
		return nil, fmt.Errorf("ban check: %w", err)
	}
	if banned {
		if err := s.audit(ctx, models.LogStatusBannedHwid, nil, req, "Attempted login with banned HWID"); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: false, Message: "HWID is banned."}, nil
	}

	lic, err := s.store.GetLicenseByKey(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("license lookup: %w", err)
	}
	if lic == nil {
		if err := s.audit(ctx, models.LogStatusInvalidKey, nil, req, fmt.Sprintf("Invalid key attempt: %s", req.Key)); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: false, Message: "Invalid key."}, nil
	}

	if !lic.IsActive() {
		if err := s.audit(ctx, models.LogStatusFailed, &lic.ID, req, fmt.Sprintf("License is %s", lic.Status)); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: false, Message: "License is not active."}, nil
	}

	if lic.BoundHwid != nil && *lic.BoundHwid != req.Hwid {
		if err := s.audit(ctx, models.LogStatusFailed, &lic.ID, req, "HWID Mismatch"); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: false, Message: "HWID Mismatch."}, nil
	}

	if err := s.bindOrRefresh(ctx, lic, req); err != nil {
		return nil, err
	}
	// bindOrRefresh rejects a lost first-bind race via lic.BoundHwid
	if lic.BoundHwid != nil && *lic.BoundHwid != req.Hwid {
		if err := s.audit(ctx, models.LogStatusFailed, &lic.ID, req, "HWID Mismatch"); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: false, Message: "HWID Mismatch."}, nil
	}

	script, err := s.store.GetScriptByProductID(ctx, lic.ProductID)
	if err != nil {
		return nil, fmt.Errorf("script lookup: %w", err)
	}
	if script == nil {
		if err := s.audit(ctx, models.LogStatusSuccess, &lic.ID, req, "No script for product"); err != nil {
			return nil, err
		}
		return &AuthResult{Valid: true, Message: "No script found for this product."}, nil
	}

	executor := req.Executor
	if executor == "" {
		executor = "Unknown"
	}
	if err := s.audit(ctx, models.LogStatusSuccess, &lic.ID, req, fmt.Sprintf("Loaded on %s", executor)); err != nil {
		return nil, err
	}

	payload := script.Content
	if !encoder.AlreadyEncoded(payload) {
		payload = s.enc.Encode(payload)
	}

	log.Debug().Int64("license_id", lic.ID).Str("hwid", req.Hwid).Msg("loader authentication succeeded")
	return &AuthResult{Valid: true, Script: payload, Message: "Authentication successful."}, nil
}

// bindOrRefresh performs the first-use binding or refreshes the usage
// stamp of an already-bound license. The bind is a conditional update
// (set only while unbound), so of two devices racing for a fresh key
// exactly one wins; the loser re-reads the row and is rejected by the
// mismatch check in Authenticate. lic is updated in place.
func (s *Service) bindOrRefresh(ctx context.Context, lic *models.License, req AuthRequest) error {
	now := s.now()

	if lic.BoundHwid == nil {
		won, err := s.store.BindHwid(ctx, lic.ID, req.Hwid, req.IP, now)
		if err != nil {
			return fmt.Errorf("bind hwid: %w", err)
		}
		if won {
			hwid := req.Hwid
			lic.BoundHwid = &hwid
			return nil
		}
		// Lost the race: someone else bound first. Re-read to see who.
		current, err := s.store.GetLicense(ctx, lic.ID)
		if err != nil {
			return fmt.Errorf("reload license: %w", err)
		}
		if current != nil {
			lic.BoundHwid = current.BoundHwid
		}
		if lic.BoundHwid != nil && *lic.BoundHwid != req.Hwid {
			return nil // Authenticate branches to rejection
		}
	}

	if err := s.store.TouchLicense(ctx, lic.ID, req.IP, now); err != nil {
		return fmt.Errorf("refresh license: %w", err)
	}
	return nil
}

// audit writes the single log row of a terminal branch and counts the
// outcome. A failed audit write aborts the request: an outcome without
// its log row would break traceability.
func (s *Service) audit(ctx context.Context, status string, licenseID *int64, req AuthRequest, details string) error {
	entry := &models.ExecutionLog{
		Status:    status,
		LicenseID: licenseID,
		Hwid:      req.Hwid,
		IPAddress: req.IP,
		Details:   details,
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	metrics.Authentications.WithLabelValues(status).Inc()
	return nil
}

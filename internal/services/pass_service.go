// Package services – PassService
//
// This file implements PassService, which owns the post-issuance lifecycle of
// a pass: gate-side scanning, redemption (paid→used), and the admin revert of
// an accidental scan (used→paid).

package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
	"github.com/nkoutso/festpass-admin/internal/notify"
	"github.com/nkoutso/festpass-admin/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrBadQRToken means the scanned token could not be decoded or does not
// match the pass it claims to represent.
var ErrBadQRToken = errors.New("malformed or mismatched qr token")

// PassService manages pass redemption state.
type PassService struct {
	DB *gorm.DB
}

// Get returns a pass by id.
func (s *PassService) Get(ctx context.Context, id string) (*domain.Pass, error) {
	p, err := repo.GetPass(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPassNotFound
	}
	return p, err
}

// Redeem flips a pass from paid to used. A pass that was already scanned is
// refused with ErrPassAlreadyUsed so the gate operator sees the double-scan.
func (s *PassService) Redeem(ctx context.Context, id string) (*domain.Pass, error) {
	tr := otel.Tracer("services/PassService")
	ctx, span := tr.Start(ctx, "Redeem",
		trace.WithAttributes(attribute.String("pass.id", id)),
	)
	defer span.End()

	p, err := repo.GetPass(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PassUsed {
		return nil, ErrPassAlreadyUsed
	}
	if err := repo.UpdatePassStatus(ctx, s.DB, id, domain.PassUsed); err != nil {
		return nil, err
	}
	p.Status = domain.PassUsed
	return p, nil
}

// Revert undoes a redemption (used→paid). Admin-only; refuses passes that
// were never scanned.
func (s *PassService) Revert(ctx context.Context, id string) (*domain.Pass, error) {
	tr := otel.Tracer("services/PassService")
	ctx, span := tr.Start(ctx, "Revert",
		trace.WithAttributes(attribute.String("pass.id", id)),
	)
	defer span.End()

	p, err := repo.GetPass(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PassUsed {
		return nil, ErrPassNotUsed
	}
	if err := repo.UpdatePassStatus(ctx, s.DB, id, domain.PassPaid); err != nil {
		return nil, err
	}
	p.Status = domain.PassPaid
	return p, nil
}

// Scan decodes a QR token, verifies it against the stored pass, and redeems
// it. This is the hot path behind the gate scanners.
func (s *PassService) Scan(ctx context.Context, token string) (*domain.Pass, error) {
	tr := otel.Tracer("services/PassService")
	ctx, span := tr.Start(ctx, "Scan")
	defer span.End()

	passID, userID, passType, err := notify.DecodeQRToken(token)
	if err != nil || passID == "" {
		return nil, ErrBadQRToken
	}

	p, err := repo.GetPass(ctx, s.DB, passID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	// The token is not a credential by itself; it must agree with the row.
	if p.UserID != userID || p.PassType != passType {
		return nil, ErrBadQRToken
	}
	span.SetAttributes(attribute.String("pass.id", p.ID))

	if p.Status == domain.PassUsed {
		return nil, ErrPassAlreadyUsed
	}
	if err := repo.UpdatePassStatus(ctx, s.DB, p.ID, domain.PassUsed); err != nil {
		return nil, err
	}
	p.Status = domain.PassUsed
	return p, nil
}

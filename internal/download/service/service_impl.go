package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/internal/config"
	"github.com/njaeplume/plume/internal/download/domain"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	"github.com/njaeplume/plume/internal/providers/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	OrderSvc   orderdomain.Service
	Signer     storage.Signer
	Policy     *config.DeliveryPolicyHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	orderSvc   orderdomain.Service
	signer     storage.Signer
	policy     *config.DeliveryPolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("download.service"),
		orderSvc:   p.OrderSvc,
		signer:     p.Signer,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RequestDownload(ctx context.Context, itemID snowflake.ID, userID string) (*domain.Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.obsMetrics.RecordDownload(ctx, "forbidden")
		return nil, domain.ErrForbidden
	}

	owned, err := s.orderSvc.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrItemNotFound) {
			s.obsMetrics.RecordDownload(ctx, "not_found")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if owned.UserID != userID {
		s.log.Warn("download denied for non-owner",
			zap.String("item_id", itemID.String()),
			zap.String("user_id", userID),
		)
		s.obsMetrics.RecordDownload(ctx, "forbidden")
		return nil, domain.ErrForbidden
	}
	if owned.OrderStatus != orderdomain.StatusCompleted {
		s.obsMetrics.RecordDownload(ctx, "not_eligible")
		return nil, domain.ErrNotEligible
	}

	policy := s.policy.Get()
	if policy.BlocksRepeats() && owned.Item.Downloaded() {
		s.obsMetrics.RecordDownload(ctx, "already_downloaded")
		return nil, domain.ErrAlreadyDownloaded
	}

	// Only the store lookup can fail transiently. It runs before the mark so a
	// failed attempt never consumes a blocked item.
	if err := s.signer.Check(ctx, owned.Item.ZipFileName); err != nil {
		return nil, s.deliveryFailed(ctx, itemID, owned.DisplayID, err)
	}

	// The mark happens before signing. Losing the race still yields a link.
	_, won, err := s.orderSvc.MarkItemDownloaded(ctx, itemID)
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(owned.Item.ZipFileName, policy.URLTTL)
	if err != nil {
		return nil, s.deliveryFailed(ctx, itemID, owned.DisplayID, err)
	}

	outcome := "repeat"
	if won {
		outcome = "first"
	}
	s.obsMetrics.RecordDownload(ctx, outcome)
	s.log.Info("download link issued",
		zap.String("item_id", itemID.String()),
		zap.String("order", owned.DisplayID),
		zap.Bool("first_download", won),
	)
	return &domain.Result{
		URL:           signed.URL,
		ExpiresAt:     signed.ExpiresAt,
		FirstDownload: won,
	}, nil
}

func (s *Service) deliveryFailed(ctx context.Context, itemID snowflake.ID, displayID string, err error) error {
	s.obsMetrics.RecordDownload(ctx, "failed")
	s.log.Error("sign download url failed",
		zap.String("item_id", itemID.String()),
		zap.String("order", displayID),
		zap.Error(err),
	)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return domain.ErrObjectNotFound
	}
	return domain.ErrSigningFailed
}

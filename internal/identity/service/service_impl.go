package service

import (
	"context"
	"strings"

	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Sync(ctx context.Context, req domain.SyncRequest) error {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ErrInvalidUser
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        userID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:  strings.TrimSpace(req.FullName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Upsert(ctx, s.db, &user)
}

func (s *Service) Lookup(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrNotFound
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

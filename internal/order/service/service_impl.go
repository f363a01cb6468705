package service

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/internal/clock"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	"github.com/njaeplume/plume/internal/order/domain"
	"github.com/njaeplume/plume/pkg/db"
	"github.com/njaeplume/plume/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
	entropy    io.Reader
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		clock:      p.Clock,
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
		entropy:    rand.Reader,
	}
}

func (s *Service) UpsertIfAbsent(ctx context.Context, req domain.UpsertRequest) (*domain.Order, bool, error) {
	if err := validateUpsert(&req); err != nil {
		return nil, false, err
	}

	for attempt := 1; attempt <= maxDisplayIDAttempts; attempt++ {
		order, err := s.buildOrder(req)
		if err != nil {
			return nil, false, err
		}

		created := false
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inserted, err := s.repo.InsertIfAbsent(ctx, tx, order)
			if err != nil {
				return err
			}
			if !inserted {
				return nil
			}
			created = true
			return s.repo.InsertItems(ctx, tx, order.Items)
		})
		if err != nil {
			// The session conflict is absorbed by the insert, so any remaining
			// unique violation is a display id collision.
			if db.IsDuplicateKeyErr(err) {
				s.log.Warn("display id collision, regenerating",
					zap.String("display_id", order.DisplayID),
					zap.Int("attempt", attempt),
				)
				continue
			}
			return nil, false, err
		}

		if created {
			s.log.Info("order created",
				zap.String("order_id", order.ID.String()),
				zap.String("display_id", order.DisplayID),
				zap.String("checkout_session_id", order.StripeCheckoutSessionID),
				zap.Int("items", len(order.Items)),
			)
			s.obsMetrics.RecordOrderCreated(ctx, order.Currency)
			return order, true, nil
		}

		existing, err := s.repo.FindBySessionID(ctx, s.db, req.SessionID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, domain.ErrNotFound
		}
		return existing, false, nil
	}

	return nil, false, domain.ErrDisplayIDExhausted
}

func validateUpsert(req *domain.UpsertRequest) error {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		return domain.ErrInvalidSession
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.AmountCents < 0 {
		return domain.ErrInvalidAmount
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		return domain.ErrInvalidCurrency
	}
	if len(req.Items) == 0 {
		return domain.ErrEmptyOrder
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.PriceCents < 0 {
			return domain.ErrEmptyOrder
		}
	}
	return nil
}

func (s *Service) buildOrder(req domain.UpsertRequest) (*domain.Order, error) {
	now := s.clock.Now()
	displayID, err := newDisplayID(now, s.entropy)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:                      s.genID.Generate(),
		DisplayID:               displayID,
		UserID:                  req.UserID,
		StripeCheckoutSessionID: req.SessionID,
		StripePaymentIntentID:   optionalString(req.PaymentIntentID),
		StripeCustomerID:        optionalString(req.CustomerID),
		Status:                  domain.StatusCompleted,
		AmountCents:             req.AmountCents,
		Currency:                req.Currency,
		CustomerEmail:           strings.TrimSpace(req.CustomerEmail),
		CustomerName:            strings.TrimSpace(req.CustomerName),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	order.Items = make([]domain.OrderItem, 0, len(req.Items))
	for _, input := range req.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:          s.genID.Generate(),
			OrderID:     order.ID,
			ProductID:   strings.TrimSpace(input.ProductID),
			ProductName: strings.TrimSpace(input.ProductName),
			Category:    strings.TrimSpace(input.Category),
			ZipFileName: strings.TrimSpace(input.ZipFileName),
			PriceCents:  input.PriceCents,
			Quantity:    1,
			CreatedAt:   now,
		})
	}
	return order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	orders, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		UserID: strings.TrimSpace(req.UserID),
	}

	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch domain.Status(status) {
		case domain.StatusPending, domain.StatusCompleted, domain.StatusFailed:
			filter.Status = domain.Status(status)
		default:
			return nil, domain.ErrInvalidStatus
		}
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		filter.CursorID = id
		filter.CursorCreatedAt = &createdAt
	}

	limit := req.Limit()
	filter.Limit = limit + 1

	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	page, info, err := pagination.Trim(orders, limit, func(o domain.Order) pagination.Cursor {
		return pagination.Cursor{
			ID:        o.ID.String(),
			CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = []domain.Order{}
	}
	return &domain.ListResponse{Orders: page, PageInfo: info}, nil
}

func (s *Service) GetByDisplayID(ctx context.Context, displayID string) (*domain.Order, error) {
	displayID = strings.ToUpper(strings.TrimSpace(displayID))
	if displayID == "" {
		return nil, domain.ErrNotFound
	}
	order, err := s.repo.FindByDisplayID(ctx, s.db, displayID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) GetItem(ctx context.Context, itemID snowflake.ID) (*domain.ItemOwnership, error) {
	if itemID == 0 {
		return nil, domain.ErrItemNotFound
	}
	item, err := s.repo.FindItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *Service) MarkItemDownloaded(ctx context.Context, itemID snowflake.ID) (*domain.OrderItem, bool, error) {
	won, err := s.repo.MarkItemDownloaded(ctx, s.db, itemID, s.clock.Now())
	if err != nil {
		return nil, false, err
	}

	stored, err := s.repo.FindItem(ctx, s.db, itemID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, domain.ErrItemNotFound
	}
	if !won {
		s.log.Debug("download already recorded",
			zap.String("order_item_id", itemID.String()),
		)
	}
	return &stored.Item, won, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

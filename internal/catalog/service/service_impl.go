package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/njaeplume/plume/internal/catalog/domain"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	"github.com/njaeplume/plume/pkg/db"
	"github.com/njaeplume/plume/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	currency string
	repo     domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("catalog.service"),
		clock:    p.Clock,
		currency: p.Config.Checkout.Currency,
		repo:     p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	category := domain.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}

	priceCents, err := money.ParseCents(req.Price)
	if err != nil || priceCents == 0 {
		return nil, domain.ErrInvalidPrice
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if currency != s.currency {
		return nil, domain.ErrInvalidCurrency
	}

	zipFileName := strings.TrimSpace(req.ZipFileName)
	if zipFileName == "" || strings.Contains(zipFileName, "..") {
		return nil, domain.ErrInvalidFile
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	images := make([]domain.Image, 0, len(req.Images))
	for _, img := range req.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			images = append(images, domain.Image{URL: u, Alt: strings.TrimSpace(img.Alt)})
		}
	}
	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:          uuid.NewString(),
		Slug:        slug.Make(name),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		PriceCents:  priceCents,
		Currency:    currency,
		ZipFileName: zipFileName,
		Images:      datatypes.NewJSONSlice(images),
		Tags:        datatypes.NewJSONSlice(tags),
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.Insert(ctx, s.db, &product)
	if db.IsDuplicateKeyErr(err) {
		// Same name as an existing product: disambiguate the slug once.
		product.Slug = product.Slug + "-" + product.ID[:8]
		err = s.repo.Insert(ctx, s.db, &product)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID),
		zap.String("slug", product.Slug),
		zap.String("category", string(product.Category)),
	)

	resp := toResponse(product)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.Category); raw != "" {
		category := domain.Category(strings.ToLower(raw))
		if !category.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		filter.Category = category
	}

	products, err := s.repo.ListActive(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Response, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	return out, nil
}

func (s *Service) GetBySlug(ctx context.Context, productSlug string) (*domain.Response, error) {
	productSlug = strings.ToLower(strings.TrimSpace(productSlug))
	if productSlug == "" {
		return nil, domain.ErrNotFound
	}

	product, err := s.repo.FindBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(*product)
	return &resp, nil
}

func (s *Service) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	products, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func toResponse(p domain.Product) domain.Response {
	images := []domain.Image(p.Images)
	if images == nil {
		images = []domain.Image{}
	}
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return domain.Response{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       money.Format(p.PriceCents),
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Images:      images,
		Tags:        tags,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/internal/clock"
	"github.com/gridora/gridora/internal/device/domain"
	"github.com/gridora/gridora/pkg/db"
	"github.com/gridora/gridora/pkg/repository"
	"github.com/gridora/gridora/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	devices *repository.Store[domain.Device]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("device.service"),
		genID: p.GenID,
		clock: p.Clock,

		devices: repository.NewSoftDeleteStore[domain.Device](p.DB, p.Log),
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Device, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, repository.ErrTenantRequired
	}

	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.Name = strings.TrimSpace(req.Name)
	if req.DeviceID == "" {
		return nil, domain.ErrInvalidDeviceID
	}
	if req.Name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.DeviceType == "" {
		req.DeviceType = domain.DeviceTypeCustom
	}
	if !req.DeviceType.Valid() {
		return nil, domain.ErrInvalidType
	}

	existing, err := s.devices.AllIncludingDeleted().FindOne(ctx, &domain.Device{DeviceID: req.DeviceID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDeviceExists
	}

	now := s.clock.Now()
	device := &domain.Device{
		ID:         s.genID.Generate(),
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		DeviceType: req.DeviceType,
		Location:   strings.TrimSpace(req.Location),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		IsActive:   true,
	}
	device.TenantID = tenantID
	device.CreatedAt = now
	device.UpdatedAt = now
	if len(req.Metadata) > 0 {
		device.Metadata = datatypes.JSONMap(req.Metadata)
	}

	// A concurrent registration can slip in between the lookup above and
	// this insert; the unique index is the backstop.
	if err := s.devices.Create(ctx, device); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDeviceExists
		}
		return nil, err
	}

	s.log.Info("device registered",
		zap.String("device_id", device.DeviceID),
		zap.String("device_type", string(device.DeviceType)),
	)
	return device, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Device, error) {
	device, err := s.devices.FindOne(ctx, &domain.Device{ID: id})
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

func (s *Service) GetByDeviceID(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, err := s.devices.FindOne(ctx, &domain.Device{DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]*domain.Device, error) {
	filter := &domain.Device{}
	if req.DeviceType != "" {
		filter.DeviceType = req.DeviceType
	}
	opts := []repository.QueryOption{repository.NewestFirst()}
	if req.ActiveOnly {
		opts = append(opts, repository.Where("is_active = ?", true))
	}
	if req.Limit > 0 {
		opts = append(opts, repository.WithLimit(req.Limit))
	}
	return s.devices.Find(ctx, filter, opts...)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Device, error) {
	device, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{"updated_at": s.clock.Now()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		changes["name"] = name
	}
	if req.Location != nil {
		changes["location"] = strings.TrimSpace(*req.Location)
	}
	if req.IsActive != nil {
		changes["is_active"] = *req.IsActive
	}
	if req.Metadata != nil {
		changes["metadata"] = datatypes.JSONMap(req.Metadata)
	}

	if err := s.devices.Updates(ctx, device.ID, changes); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) SoftDelete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.devices.SoftDelete(ctx, id, s.clock.Now())
}

func (s *Service) Restore(ctx context.Context, id snowflake.ID) error {
	device, err := s.devices.DeletedOnly().FindOne(ctx, &domain.Device{ID: id})
	if err != nil {
		return err
	}
	if device == nil {
		return domain.ErrNotFound
	}
	return s.devices.Restore(ctx, id)
}

// TouchLastReading stamps the device's last_reading_at high-water mark. It
// never moves the mark backwards.
func (s *Service) TouchLastReading(ctx context.Context, id snowflake.ID, at time.Time) error {
	device, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if device.LastReadingAt != nil && !at.After(*device.LastReadingAt) {
		return nil
	}
	return s.devices.Updates(ctx, id, map[string]any{
		"last_reading_at": at,
		"updated_at":      s.clock.Now(),
	})
}

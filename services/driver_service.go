package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
	"github.com/openlaps/apexfantasy/storage"
)

// DriverInput — административный ввод для создания/изменения гонщика.
type DriverInput struct {
	Name       string   `json:"name"`
	Value      float64  `json:"value"`
	Categories []string `json:"categories"`
	Country    *string  `json:"country,omitempty"`
}

type DriverService struct {
	resolver seasons.StoreResolver
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewDriverService(resolver seasons.StoreResolver, uploader storage.FileUploader, logger *slog.Logger) *DriverService {
	return &DriverService{
		resolver: resolver,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *DriverService) Create(ctx context.Context, season int, input DriverInput) (*models.Driver, error) {
	categories, err := validateDriverInput(input)
	if err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	driver := &models.Driver{
		Name:          input.Name,
		CurrentValue:  input.Value,
		PreviousValue: input.Value,
		Categories:    categories,
		Country:       input.Country,
	}
	if err := stores.Drivers.Create(ctx, nil, driver); err != nil {
		if errors.Is(err, repositories.ErrDriverNameConflict) {
			return nil, ErrDriverNameConflict
		}
		return nil, err
	}
	s.logger.Info("driver created",
		slog.Int("season", season),
		slog.Int("driver_id", driver.ID),
		slog.String("name", driver.Name))
	return driver, nil
}

func (s *DriverService) Update(ctx context.Context, season, id int, input DriverInput) (*models.Driver, error) {
	categories, err := validateDriverInput(input)
	if err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	driver, err := stores.Drivers.GetByID(ctx, id)
	if err != nil {
		return nil, mapDriverError(err, id)
	}
	driver.Name = input.Name
	driver.CurrentValue = input.Value
	driver.Categories = categories
	driver.Country = input.Country
	if err := stores.Drivers.Update(ctx, nil, driver); err != nil {
		if errors.Is(err, repositories.ErrDriverNameConflict) {
			return nil, ErrDriverNameConflict
		}
		return nil, mapDriverError(err, id)
	}
	return s.withImageURL(driver), nil
}

// Delete refuses to remove a driver that any roster still references; the
// constraint is enforced here, not by the storage layer.
func (s *DriverService) Delete(ctx context.Context, season, id int) error {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return mapSeasonError(err)
	}
	refs, err := stores.Rosters.CountByDriver(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: %d roster(s)", ErrDriverStillReferenced, refs)
	}
	if err := stores.Drivers.Delete(ctx, id); err != nil {
		return mapDriverError(err, id)
	}
	return nil
}

func (s *DriverService) GetByID(ctx context.Context, season, id int) (*models.Driver, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	driver, err := stores.Drivers.GetByID(ctx, id)
	if err != nil {
		return nil, mapDriverError(err, id)
	}
	return s.withImageURL(driver), nil
}

func (s *DriverService) List(ctx context.Context, season int) ([]*models.Driver, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	drivers, err := stores.Drivers.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drivers {
		s.withImageURL(d)
	}
	return drivers, nil
}

// UploadPortrait stores the driver's display image and records its key.
func (s *DriverService) UploadPortrait(ctx context.Context, season, id int, contentType string, reader io.Reader) (*models.Driver, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	driver, err := stores.Drivers.GetByID(ctx, id)
	if err != nil {
		return nil, mapDriverError(err, id)
	}

	key := fmt.Sprintf("drivers/%d/%d", season, id)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload driver portrait: %w", err)
	}
	if err := stores.Drivers.UpdateImageKey(ctx, id, &result.Key); err != nil {
		return nil, mapDriverError(err, id)
	}
	driver.ImageKey = &result.Key
	return s.withImageURL(driver), nil
}

func (s *DriverService) withImageURL(driver *models.Driver) *models.Driver {
	if driver.ImageKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*driver.ImageKey)
		driver.ImageURL = &url
	}
	return driver
}

func validateDriverInput(input DriverInput) ([]models.Category, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: driver name is required", ErrValidationFailed)
	}
	if input.Value < 0 {
		return nil, fmt.Errorf("%w: driver value must not be negative", ErrValidationFailed)
	}
	if len(input.Categories) < 1 || len(input.Categories) > 2 {
		return nil, fmt.Errorf("%w: a driver carries 1 or 2 category tags", ErrValidationFailed)
	}
	categories, ok := models.ParseCategories(input.Categories)
	if !ok {
		return nil, fmt.Errorf("%w: allowed tags are M, JS, I", ErrInvalidCategory)
	}
	return categories, nil
}

func mapDriverError(err error, id int) error {
	if errors.Is(err, repositories.ErrDriverNotFound) {
		return &UnknownDriversError{IDs: []int{id}}
	}
	return err
}

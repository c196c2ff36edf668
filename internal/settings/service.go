package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

var knownKeys = map[string]bool{
	KeyPlans:           true,
	KeyFeatureFlags:    true,
	KeyOperatorChatIDs: true,
	KeyAdminChannel:    true,
	KeyPublicChannel:   true,
	KeySupportContact:  true,
}

// Service reads and writes the key-value configuration store.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// NewService validates dependencies and builds the settings service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("settings repository is required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

// Snapshot fetches a read-only view of all settings. Missing or unparseable
// keys fall back to zero values; the snapshot is complete either way so every
// operation works against one consistent read.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading settings")
	}

	snapshot := &Snapshot{}
	for _, row := range rows {
		switch row.Key {
		case KeyPlans:
			var plans []Plan
			if err := json.Unmarshal([]byte(row.Value), &plans); err != nil {
				s.warn(ctx, row.Key, err)
				continue
			}
			snapshot.Plans = plans
		case KeyFeatureFlags:
			var flags FeatureFlags
			if err := json.Unmarshal([]byte(row.Value), &flags); err != nil {
				s.warn(ctx, row.Key, err)
				continue
			}
			snapshot.Flags = flags
		case KeyOperatorChatIDs:
			var ids []int64
			if err := json.Unmarshal([]byte(row.Value), &ids); err != nil {
				s.warn(ctx, row.Key, err)
				continue
			}
			snapshot.OperatorChatIDs = ids
		case KeyAdminChannel:
			snapshot.AdminChannel = row.Value
		case KeyPublicChannel:
			snapshot.PublicChannel = row.Value
		case KeySupportContact:
			snapshot.SupportContact = row.Value
		}
	}
	return snapshot, nil
}

// List returns every stored setting row for the admin surface.
func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading settings")
	}
	return rows, nil
}

// Update validates and writes the provided key-value pairs.
func (s *Service) Update(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no settings provided")
	}
	for key, value := range values {
		if !knownKeys[key] {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown setting key %q", key))
		}
		if err := validateValue(key, value); err != nil {
			return err
		}
	}
	for key, value := range values {
		if err := s.repo.Upsert(ctx, key, value); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing setting")
		}
	}
	return nil
}

func validateValue(key, value string) error {
	switch key {
	case KeyPlans:
		var plans []Plan
		if err := json.Unmarshal([]byte(value), &plans); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "plans must be a JSON array")
		}
		for _, plan := range plans {
			if strings.TrimSpace(plan.ID) == "" || strings.TrimSpace(plan.Name) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "every plan needs an id and a name")
			}
			if plan.PeriodMonths <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %s needs a positive period", plan.ID))
			}
			if plan.Price.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %s has a negative price", plan.ID))
			}
		}
	case KeyFeatureFlags:
		var flags FeatureFlags
		if err := json.Unmarshal([]byte(value), &flags); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "feature flags must be a JSON object")
		}
	case KeyOperatorChatIDs:
		var ids []int64
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "operator chat ids must be a JSON array of integers")
		}
	}
	return nil
}

func (s *Service) warn(ctx context.Context, key string, err error) {
	if s.logger == nil {
		return
	}
	ctx = s.logger.WithFields(ctx, map[string]any{"setting_key": key})
	s.logger.Warn(ctx, fmt.Sprintf("skipping unparseable setting: %v", err))
}

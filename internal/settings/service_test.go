package settings

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

type stubRepo struct {
	rows     []models.Setting
	upserted map[string]string
	listErr  error
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) ListAll(ctx context.Context) ([]models.Setting, error) {
	return s.rows, s.listErr
}

func (s *stubRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	for i := range s.rows {
		if s.rows[i].Key == key {
			return &s.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) Upsert(ctx context.Context, key, value string) error {
	if s.upserted == nil {
		s.upserted = map[string]string{}
	}
	s.upserted[key] = value
	return nil
}

func TestSnapshotParsesKnownKeys(t *testing.T) {
	repo := &stubRepo{rows: []models.Setting{
		{Key: KeyPlans, Value: `[{"id":"3m","name":"Premium 3 months","price":"12.99","currency":"usd","period_months":3}]`},
		{Key: KeyFeatureFlags, Value: `{"automatic_fulfillment":true,"notifications_enabled":true}`},
		{Key: KeyOperatorChatIDs, Value: `[111,222]`},
		{Key: KeySupportContact, Value: "@support"},
	}}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	snapshot, err := service.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	plan := snapshot.PlanByID("3m")
	if plan == nil {
		t.Fatal("expected plan 3m in catalog")
	}
	if plan.PeriodMonths != 3 || plan.Price.String() != "12.99" {
		t.Fatalf("unexpected plan payload %+v", plan)
	}
	if !snapshot.Flags.AutomaticFulfillment {
		t.Fatal("expected automatic fulfillment flag")
	}
	if len(snapshot.OperatorChatIDs) != 2 || snapshot.OperatorChatIDs[1] != 222 {
		t.Fatalf("unexpected operator ids %v", snapshot.OperatorChatIDs)
	}
	if snapshot.SupportContact != "@support" {
		t.Fatalf("unexpected support contact %q", snapshot.SupportContact)
	}
}

func TestSnapshotSkipsUnparseableValues(t *testing.T) {
	repo := &stubRepo{rows: []models.Setting{
		{Key: KeyPlans, Value: `not-json`},
		{Key: KeySupportContact, Value: "@support"},
	}}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	snapshot, err := service.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot.Plans) != 0 {
		t.Fatal("unparseable plans should be skipped")
	}
	if snapshot.SupportContact != "@support" {
		t.Fatal("valid keys should still load")
	}
}

func TestUpdateValidatesKeysAndPayloads(t *testing.T) {
	repo := &stubRepo{}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	ctx := context.Background()

	if err := service.Update(ctx, map[string]string{"bogus": "x"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown key, got %v", err)
	}
	if err := service.Update(ctx, map[string]string{KeyPlans: `{"not":"array"}`}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad plans, got %v", err)
	}
	if err := service.Update(ctx, map[string]string{KeyPlans: `[{"id":"3m","name":"x","period_months":0}]`}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero period, got %v", err)
	}
	if err := service.Update(ctx, nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}

	valid := map[string]string{
		KeyPlans:          `[{"id":"3m","name":"Premium 3 months","price":"12.99","currency":"usd","period_months":3}]`,
		KeySupportContact: "@support",
	}
	if err := service.Update(ctx, valid); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}
	if repo.upserted[KeySupportContact] != "@support" {
		t.Fatal("support contact not persisted")
	}
}

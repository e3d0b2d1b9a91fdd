package features

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	domain "hermes/internal/domain/features"
)

type fakeCold struct {
	profile *domain.ColdProfile
	err     error
}

func (f *fakeCold) GetProfile(ctx context.Context, userID string) (*domain.ColdProfile, error) {
	return f.profile, f.err
}

type fakeHot struct {
	session *domain.CartSession
	err     error
}

func (f *fakeHot) GetSession(ctx context.Context, userID string) (*domain.CartSession, error) {
	return f.session, f.err
}

func session(cart, margin float64, status string) *domain.CartSession {
	return &domain.CartSession{
		CartValue:       decimal.NewFromFloat(cart),
		ProfitMargin:    decimal.NewFromFloat(margin),
		InventoryStatus: status,
	}
}

func TestGetUserContext_MergesBothStores(t *testing.T) {
	svc := NewService(
		&fakeCold{profile: &domain.ColdProfile{UserLTV: 1500, ChurnProbability: 0.8}},
		&fakeHot{session: session(300, 0.25, "Normal")},
	)

	got := svc.GetUserContext(context.Background(), "user_102")

	assert.Equal(t, domain.Context{
		domain.KeyUserID:           "user_102",
		domain.KeyUserLTV:          1500.0,
		domain.KeyChurnProbability: 0.8,
		domain.KeyCartValue:        300.0,
		domain.KeyProfitMargin:     0.25,
		domain.KeyInventoryStatus:  "Normal",
	}, got)
}

func TestGetUserContext_UnknownUserIsEmpty(t *testing.T) {
	svc := NewService(&fakeCold{}, &fakeHot{})

	got := svc.GetUserContext(context.Background(), "user_999")

	// Empty means not found; in particular no user_id key is added.
	assert.Empty(t, got)
}

func TestGetUserContext_PartialResults(t *testing.T) {
	tests := []struct {
		name string
		cold *fakeCold
		hot  *fakeHot
		want domain.Context
	}{
		{
			name: "cold only",
			cold: &fakeCold{profile: &domain.ColdProfile{UserLTV: 900, ChurnProbability: 0.4}},
			hot:  &fakeHot{},
			want: domain.Context{
				domain.KeyUserID:           "user_102",
				domain.KeyUserLTV:          900.0,
				domain.KeyChurnProbability: 0.4,
			},
		},
		{
			name: "hot only",
			cold: &fakeCold{},
			hot:  &fakeHot{session: session(55.5, 0.1, "Low")},
			want: domain.Context{
				domain.KeyUserID:          "user_102",
				domain.KeyCartValue:       55.5,
				domain.KeyProfitMargin:    0.1,
				domain.KeyInventoryStatus: "Low",
			},
		},
		{
			name: "cold failed, hot healthy",
			cold: &fakeCold{err: fmt.Errorf("connect: connection refused")},
			hot:  &fakeHot{session: session(55.5, 0.1, "Low")},
			want: domain.Context{
				domain.KeyUserID:          "user_102",
				domain.KeyCartValue:       55.5,
				domain.KeyProfitMargin:    0.1,
				domain.KeyInventoryStatus: "Low",
			},
		},
		{
			name: "hot failed, cold healthy",
			cold: &fakeCold{profile: &domain.ColdProfile{UserLTV: 900, ChurnProbability: 0.4}},
			hot:  &fakeHot{err: fmt.Errorf("dial tcp: i/o timeout")},
			want: domain.Context{
				domain.KeyUserID:           "user_102",
				domain.KeyUserLTV:          900.0,
				domain.KeyChurnProbability: 0.4,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.cold, tt.hot)
			got := svc.GetUserContext(context.Background(), "user_102")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetUserContext_BothStoresFailingIsEmpty(t *testing.T) {
	svc := NewService(
		&fakeCold{err: fmt.Errorf("boom")},
		&fakeHot{err: fmt.Errorf("boom")},
	)

	// Indistinguishable from an unknown user: the caller takes the
	// not-found path rather than failing the turn.
	assert.Empty(t, svc.GetUserContext(context.Background(), "user_102"))
}

func TestContextFloat(t *testing.T) {
	c := domain.Context{
		domain.KeyChurnProbability: 0.8,
		domain.KeyInventoryStatus:  "Normal",
	}

	assert.Equal(t, 0.8, c.Float(domain.KeyChurnProbability, 0.5))
	assert.Equal(t, 0.5, c.Float("missing", 0.5))
	assert.Equal(t, 0.5, c.Float(domain.KeyInventoryStatus, 0.5))
}

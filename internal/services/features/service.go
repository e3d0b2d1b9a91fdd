package features

import (
	"context"

	"hermes/internal/domain/features"
	"hermes/internal/metrics"
	"hermes/pkg/logger"
)

// Service merges the cold and hot feature stores into one flat context per
// user. Store failures never propagate to the caller: a failed read degrades
// to an empty partial result, because a missing profile is a normal business
// outcome for an unknown user, not a system fault.
type Service struct {
	cold features.ColdReader
	hot  features.HotReader
	log  *logger.Logger
}

// NewService creates a feature merger over the two stores
func NewService(cold features.ColdReader, hot features.HotReader) *Service {
	return &Service{
		cold: cold,
		hot:  hot,
		log:  logger.Get().With("component", "feature_merger"),
	}
}

// GetUserContext reads both stores and merges the results, cold first and hot
// overlaid on top. When neither store knows the user the returned context is
// empty, which callers treat as "user not found"; otherwise the caller's
// user_id is added to the merged mapping.
func (s *Service) GetUserContext(ctx context.Context, userID string) features.Context {
	cold := s.coldPartial(ctx, userID)
	hot := s.hotPartial(ctx, userID)

	if len(cold) == 0 && len(hot) == 0 {
		return features.Context{}
	}

	merged := features.Context{}
	for k, v := range cold {
		merged[k] = v
	}
	// Hot overlays cold on collision. The key sets are disjoint today, so
	// this only matters if a store starts publishing the other's fields.
	for k, v := range hot {
		merged[k] = v
	}
	merged[features.KeyUserID] = userID

	return merged
}

func (s *Service) coldPartial(ctx context.Context, userID string) features.Context {
	profile, err := s.cold.GetProfile(ctx, userID)
	if err != nil {
		s.log.Warnf("Cold store read failed for %s, degrading to defaults: %v", userID, err)
		metrics.StoreReads.WithLabelValues("cold", "error").Inc()
		return features.Context{}
	}
	if profile == nil {
		metrics.StoreReads.WithLabelValues("cold", "miss").Inc()
		return features.Context{}
	}

	metrics.StoreReads.WithLabelValues("cold", "hit").Inc()
	return features.Context{
		features.KeyUserLTV:          profile.UserLTV,
		features.KeyChurnProbability: profile.ChurnProbability,
	}
}

func (s *Service) hotPartial(ctx context.Context, userID string) features.Context {
	session, err := s.hot.GetSession(ctx, userID)
	if err != nil {
		s.log.Warnf("Hot store read failed for %s, degrading to defaults: %v", userID, err)
		metrics.StoreReads.WithLabelValues("hot", "error").Inc()
		return features.Context{}
	}
	if session == nil {
		metrics.StoreReads.WithLabelValues("hot", "miss").Inc()
		return features.Context{}
	}

	metrics.StoreReads.WithLabelValues("hot", "hit").Inc()
	return features.Context{
		features.KeyCartValue:       session.CartValue.InexactFloat64(),
		features.KeyProfitMargin:    session.ProfitMargin.InexactFloat64(),
		features.KeyInventoryStatus: session.InventoryStatus,
	}
}

// Package memory provides in-process implementations of the persistence
// interfaces for tests and single-node runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/persistence"
)

// Store holds all repositories behind one mutex. Each repo accessor returns
// a view implementing one persistence interface.
type Store struct {
	mu            sync.RWMutex
	touchpoints   map[string]domain.Touchpoint
	conversions   map[string]domain.Conversion
	weights       map[string]domain.AttributionWeight // keyed by triple
	channelDays   []domain.ChannelDay
	targets       map[string][]domain.TargetDay
	models        map[string]domain.MarketingMixModel
	optimizations map[string][]domain.BudgetOptimization
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		touchpoints:   make(map[string]domain.Touchpoint),
		conversions:   make(map[string]domain.Conversion),
		weights:       make(map[string]domain.AttributionWeight),
		targets:       make(map[string][]domain.TargetDay),
		models:        make(map[string]domain.MarketingMixModel),
		optimizations: make(map[string][]domain.BudgetOptimization),
	}
}

// Touchpoints returns the touchpoint repository view
func (s *Store) Touchpoints() persistence.TouchpointRepo { return &touchpointRepo{s} }

// Conversions returns the conversion repository view
func (s *Store) Conversions() persistence.ConversionRepo { return &conversionRepo{s} }

// Attributions returns the weight-record repository view
func (s *Store) Attributions() persistence.AttributionRepo { return &attributionRepo{s} }

// Series returns the daily-series repository view
func (s *Store) Series() persistence.SeriesRepo { return &seriesRepo{s} }

// Models returns the MMM artifact repository view
func (s *Store) Models() persistence.ModelRepo { return &modelRepo{s} }

// Optimizations returns the budget-optimization repository view
func (s *Store) Optimizations() persistence.OptimizationRepo { return &optimizationRepo{s} }

func tripleKey(conversionID, touchpointID string, model domain.AttributionModelType) string {
	return conversionID + "|" + touchpointID + "|" + string(model)
}

type touchpointRepo struct{ s *Store }

func (r *touchpointRepo) Insert(ctx context.Context, tp domain.Touchpoint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.touchpoints[tp.ID]; ok {
		return fmt.Errorf("duplicate touchpoint %s", tp.ID)
	}
	r.s.touchpoints[tp.ID] = tp
	return nil
}

func (r *touchpointRepo) ListForSubject(ctx context.Context, subjectID string, from, to time.Time) ([]domain.Touchpoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Touchpoint
	for _, tp := range r.s.touchpoints {
		if tp.SubjectID != subjectID || tp.Excluded {
			continue
		}
		if tp.Timestamp.Before(from) || tp.Timestamp.After(to) {
			continue
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type conversionRepo struct{ s *Store }

func (r *conversionRepo) Insert(ctx context.Context, conv domain.Conversion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversions[conv.ID]; ok {
		return fmt.Errorf("duplicate conversion %s", conv.ID)
	}
	if conv.Status == "" {
		conv.Status = domain.ConversionPending
	}
	r.s.conversions[conv.ID] = conv
	return nil
}

func (r *conversionRepo) Get(ctx context.Context, id string) (domain.Conversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	conv, ok := r.s.conversions[id]
	if !ok {
		return domain.Conversion{}, fmt.Errorf("conversion %s not found", id)
	}
	return conv, nil
}

func (r *conversionRepo) ListPending(ctx context.Context, limit int) ([]domain.Conversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Conversion
	for _, c := range r.s.conversions {
		if c.Status == domain.ConversionPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *conversionRepo) Update(ctx context.Context, conv domain.Conversion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversions[conv.ID]; !ok {
		return fmt.Errorf("conversion %s not found", conv.ID)
	}
	r.s.conversions[conv.ID] = conv
	return nil
}

type attributionRepo struct{ s *Store }

func (r *attributionRepo) Upsert(ctx context.Context, rec domain.AttributionWeight) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := tripleKey(rec.ConversionID, rec.TouchpointID, rec.ModelType)
	prev, exists := r.s.weights[key]
	if exists {
		// Overwrite in place: the record keeps its identity, only the
		// computed values and status change.
		rec.ID = prev.ID
		rec.Status = domain.WeightRecalculated
	}
	r.s.weights[key] = rec
	return !exists, nil
}

func (r *attributionRepo) ListByConversion(ctx context.Context, conversionID string) ([]domain.AttributionWeight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AttributionWeight
	for _, rec := range r.s.weights {
		if rec.ConversionID == conversionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelType != out[j].ModelType {
			return out[i].ModelType < out[j].ModelType
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *attributionRepo) ListByModel(ctx context.Context, model domain.AttributionModelType, from, to time.Time) ([]domain.AttributionWeight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AttributionWeight
	for _, rec := range r.s.weights {
		if rec.ModelType != model {
			continue
		}
		if rec.ComputedAt.Before(from) || rec.ComputedAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComputedAt.Before(out[j].ComputedAt) })
	return out, nil
}

type seriesRepo struct{ s *Store }

func (r *seriesRepo) InsertChannelDays(ctx context.Context, rows []domain.ChannelDay) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.channelDays = append(r.s.channelDays, rows...)
	return nil
}

func (r *seriesRepo) ListChannelDays(ctx context.Context, channel string, from, to time.Time) ([]domain.ChannelDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ChannelDay
	for _, row := range r.s.channelDays {
		if row.Channel != channel {
			continue
		}
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *seriesRepo) TrailingSpend(ctx context.Context, channel string, days int, until time.Time) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	from := until.AddDate(0, 0, -days)
	total := 0.0
	for _, row := range r.s.channelDays {
		if row.Channel != channel || row.Date.Before(from) || row.Date.After(until) {
			continue
		}
		total += row.Spend
	}
	return total, nil
}

func (r *seriesRepo) InsertTargetDays(ctx context.Context, metric string, rows []domain.TargetDay) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.targets[metric] = append(r.s.targets[metric], rows...)
	return nil
}

func (r *seriesRepo) ListTargetDays(ctx context.Context, metric string, from, to time.Time) ([]domain.TargetDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.TargetDay
	for _, row := range r.s.targets[metric] {
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type modelRepo struct{ s *Store }

func (r *modelRepo) Insert(ctx context.Context, m domain.MarketingMixModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.models[m.ID]; ok {
		return fmt.Errorf("duplicate model %s", m.ID)
	}
	r.s.models[m.ID] = m
	return nil
}

func (r *modelRepo) Get(ctx context.Context, id string) (domain.MarketingMixModel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.models[id]
	if !ok {
		return domain.MarketingMixModel{}, fmt.Errorf("model %s not found", id)
	}
	return m, nil
}

func (r *modelRepo) Update(ctx context.Context, m domain.MarketingMixModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.models[m.ID]; !ok {
		return fmt.Errorf("model %s not found", m.ID)
	}
	r.s.models[m.ID] = m
	return nil
}

type optimizationRepo struct{ s *Store }

func (r *optimizationRepo) Insert(ctx context.Context, opt domain.BudgetOptimization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.optimizations[opt.ModelID] = append(r.s.optimizations[opt.ModelID], opt)
	return nil
}

func (r *optimizationRepo) ListByModel(ctx context.Context, modelID string) ([]domain.BudgetOptimization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.BudgetOptimization(nil), r.s.optimizations[modelID]...), nil
}

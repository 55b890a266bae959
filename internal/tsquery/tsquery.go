// Package tsquery resolves a named range or explicit granularity into a
// bounded sequence of metric_samples rows. Named ranges map deterministically
// per §4.4: a query never names a granularity that could blow the 500-point
// ceiling, but the ceiling is still checked — a caller-supplied [from, to)
// with an explicit granularity is not bound by the named-range table.
package tsquery

import (
	"context"
	"time"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
)

// Range is a named window; granularity is fixed per the table below.
type Range string

const (
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

// rangeGranularity is the deterministic mapping from §4.4.
var rangeGranularity = map[Range]string{
	Range1h:  "1m",
	Range6h:  "5m",
	Range24h: "5m",
	Range7d:  "1h",
	Range30d: "1d",
}

var rangeDuration = map[Range]time.Duration{
	Range1h:  time.Hour,
	Range6h:  6 * time.Hour,
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
}

var granularityStep = map[string]time.Duration{
	"raw": time.Second,
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
}

const maxPoints = 500

// GranularityForRange returns the fixed granularity for a named range.
func GranularityForRange(r Range) (string, bool) {
	g, ok := rangeGranularity[r]
	return g, ok
}

// Query is a resolved time-series request: either a named range (granularity
// implied) or an explicit [from,to) + granularity pair.
type Query struct {
	InstanceID  string // empty = fleet-wide
	Granularity string
	From        time.Time
	To          time.Time
}

// ResolveRange builds a Query for a named range ending now.
func ResolveRange(instanceID string, r Range, now time.Time) (*Query, *apperrors.AppError) {
	granularity, ok := GranularityForRange(r)
	if !ok {
		return nil, apperrors.BadRequest("unknown range: " + string(r))
	}
	duration := rangeDuration[r]
	return &Query{
		InstanceID:  instanceID,
		Granularity: granularity,
		From:        now.Add(-duration),
		To:          now,
	}, nil
}

// checkCeiling rejects a query whose bucket count would exceed 500 points.
func checkCeiling(q *Query) *apperrors.AppError {
	step, ok := granularityStep[q.Granularity]
	if !ok {
		return apperrors.BadRequest("unknown granularity: " + q.Granularity)
	}
	span := q.To.Sub(q.From)
	if span <= 0 {
		return apperrors.BadRequest("to must be after from")
	}
	buckets := int(span/step) + 1
	if buckets > maxPoints {
		return apperrors.TooManyPoints()
	}
	return nil
}

// Querier runs resolved queries against metric_samples.
type Querier struct {
	metrics *db.MetricDB
}

func NewQuerier(database *db.Database) *Querier {
	return &Querier{metrics: db.NewMetricDB(database)}
}

// RunInstance returns the ordered sample sequence for one instance.
func (q *Querier) RunInstance(ctx context.Context, query *Query) ([]*models.MetricSample, *apperrors.AppError) {
	if err := checkCeiling(query); err != nil {
		return nil, err
	}
	samples, dbErr := q.metrics.Range(ctx, query.InstanceID, query.Granularity, query.From, query.To)
	if dbErr != nil {
		return nil, apperrors.DatabaseError(dbErr)
	}
	return samples, nil
}

// RunFleet runs the same query across every instance ID given, tagging each
// result with its instance id — fleet queries are never aggregated across
// instances per §4.4.
func (q *Querier) RunFleet(ctx context.Context, instanceIDs []string, granularity string, from, to time.Time) ([]*models.MetricSample, *apperrors.AppError) {
	base := &Query{Granularity: granularity, From: from, To: to}
	if err := checkCeiling(base); err != nil {
		return nil, err
	}

	var all []*models.MetricSample
	for _, id := range instanceIDs {
		samples, dbErr := q.metrics.Range(ctx, id, granularity, from, to)
		if dbErr != nil {
			return nil, apperrors.DatabaseError(dbErr)
		}
		all = append(all, samples...)
	}
	return all, nil
}

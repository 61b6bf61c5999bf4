package urgency

import (
	"math"
	"sort"
	"sync"

	"crypto-herald/internal/domain"
)

type Metric string

const (
	MetricFearGreed    Metric = "fear_greed"
	MetricBTCDominance Metric = "btc_dominance"
	MetricBTCPrice     Metric = "btc_price"
	MetricETHPrice     Metric = "eth_price"
	MetricBTCChange1h  Metric = "btc_change_1h"
	MetricETHChange1h  Metric = "eth_change_1h"
)

// DeltaMode says how the change between two observations is measured.
type DeltaMode int

const (
	// Points is the absolute difference, for indices and percentages.
	Points DeltaMode = iota
	// Percent is the relative change of a price, in percent.
	Percent
	// Reported takes the observed value as the change itself, as reported by
	// the provider over its own window. It alerts when the value crosses the
	// limit and stays quiet until it falls back under it or flips sign.
	Reported
)

type Threshold struct {
	Metric Metric
	Limit  float64
	Mode   DeltaMode
}

// Observation is one reading of the tracked metrics. Missing metrics are
// simply absent from the map.
type Observation map[Metric]float64

type DeltaAlert struct {
	Metric    Metric    `json:"metric"`
	Previous  float64   `json:"previous"`
	Current   float64   `json:"current"`
	Delta     float64   `json:"delta"`
	Threshold float64   `json:"threshold"`
	Mode      DeltaMode `json:"mode"`
}

// DeltaClassifier compares each observation with the previous one and flags
// metrics whose absolute change reached their threshold. It holds the last
// observed value per metric and produces nothing for a metric until it has
// a baseline, except for Reported thresholds which need none.
type DeltaClassifier struct {
	mu         sync.Mutex
	thresholds []Threshold
	last       map[Metric]float64
}

func NewDeltaClassifier(thresholds ...Threshold) *DeltaClassifier {
	return &DeltaClassifier{thresholds: thresholds, last: make(map[Metric]float64)}
}

// Observe checks obs against the stored baseline, then replaces the baseline
// with obs. Metrics missing from obs keep their previous baseline.
func (d *DeltaClassifier) Observe(obs Observation) []DeltaAlert {
	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []DeltaAlert
	for _, th := range d.thresholds {
		cur, ok := obs[th.Metric]
		if !ok {
			continue
		}
		prev, seen := d.last[th.Metric]
		d.last[th.Metric] = cur
		if th.Mode == Reported {
			if a, ok := crossed(th, prev, cur, seen); ok {
				alerts = append(alerts, a)
			}
			continue
		}
		if !seen {
			continue
		}
		delta := cur - prev
		if th.Mode == Percent {
			if prev == 0 {
				continue
			}
			delta = (cur - prev) / prev * 100
		}
		if math.Abs(delta) >= th.Limit {
			alerts = append(alerts, DeltaAlert{
				Metric:    th.Metric,
				Previous:  prev,
				Current:   cur,
				Delta:     delta,
				Threshold: th.Limit,
				Mode:      th.Mode,
			})
		}
	}
	return alerts
}

func crossed(th Threshold, prev, cur float64, seen bool) (DeltaAlert, bool) {
	if math.Abs(cur) < th.Limit {
		return DeltaAlert{}, false
	}
	if seen && math.Abs(prev) >= th.Limit && (prev > 0) == (cur > 0) {
		return DeltaAlert{}, false
	}
	return DeltaAlert{
		Metric:    th.Metric,
		Previous:  prev,
		Current:   cur,
		Delta:     cur,
		Threshold: th.Limit,
		Mode:      th.Mode,
	}, true
}

type Reading struct {
	Metric Metric  `json:"metric"`
	Value  float64 `json:"value"`
}

// Baseline returns the stored values sorted by metric.
func (d *DeltaClassifier) Baseline() []Reading {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Reading, 0, len(d.last))
	for m, v := range d.last {
		out = append(out, Reading{Metric: m, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

// ObservationFromSnapshot extracts the tracked metrics present in s.
func ObservationFromSnapshot(s *domain.MarketSnapshot) Observation {
	obs := Observation{}
	if s == nil {
		return obs
	}
	if s.Sentiment != nil {
		obs[MetricFearGreed] = float64(s.Sentiment.Value)
	}
	if s.Global != nil && s.Global.BTCDominance > 0 {
		obs[MetricBTCDominance] = s.Global.BTCDominance
	}
	if q, ok := s.Price("BTC"); ok && q.PriceUSD > 0 {
		obs[MetricBTCPrice] = q.PriceUSD
		obs[MetricBTCChange1h] = q.Change1hPct
	}
	if q, ok := s.Price("ETH"); ok && q.PriceUSD > 0 {
		obs[MetricETHPrice] = q.PriceUSD
		obs[MetricETHChange1h] = q.Change1hPct
	}
	return obs
}

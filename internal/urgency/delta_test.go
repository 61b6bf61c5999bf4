package urgency

import (
	"testing"

	"crypto-herald/internal/domain"
)

func sentimentClassifier() *DeltaClassifier {
	return NewDeltaClassifier(Threshold{Metric: MetricFearGreed, Limit: 10, Mode: Points})
}

func TestNoAlertOnFirstObservation(t *testing.T) {
	d := sentimentClassifier()
	if alerts := d.Observe(Observation{MetricFearGreed: 90}); len(alerts) != 0 {
		t.Fatalf("expected no alert without a baseline, got %+v", alerts)
	}
}

func TestSentimentDeltaThreshold(t *testing.T) {
	tests := []struct {
		name  string
		from  float64
		to    float64
		alert bool
	}{
		{"rise of 12 triggers", 40, 52, true},
		{"rise of 8 does not", 40, 48, false},
		{"exact threshold triggers", 40, 50, true},
		{"drop of 15 triggers", 60, 45, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := sentimentClassifier()
			d.Observe(Observation{MetricFearGreed: tc.from})
			alerts := d.Observe(Observation{MetricFearGreed: tc.to})
			if (len(alerts) == 1) != tc.alert {
				t.Fatalf("expected alert=%v, got %+v", tc.alert, alerts)
			}
			if tc.alert && alerts[0].Delta != tc.to-tc.from {
				t.Fatalf("unexpected delta %v", alerts[0].Delta)
			}
		})
	}
}

func TestBaselineIsOverwrittenEachObservation(t *testing.T) {
	d := sentimentClassifier()
	d.Observe(Observation{MetricFearGreed: 40})
	d.Observe(Observation{MetricFearGreed: 48})
	if alerts := d.Observe(Observation{MetricFearGreed: 56}); len(alerts) != 0 {
		t.Fatalf("delta is measured from the previous check, got %+v", alerts)
	}
}

func TestMissingMetricKeepsBaseline(t *testing.T) {
	d := NewDeltaClassifier(
		Threshold{Metric: MetricFearGreed, Limit: 10},
		Threshold{Metric: MetricBTCDominance, Limit: 1.5},
	)
	d.Observe(Observation{MetricFearGreed: 40, MetricBTCDominance: 52})
	d.Observe(Observation{MetricFearGreed: 41})
	alerts := d.Observe(Observation{MetricFearGreed: 41, MetricBTCDominance: 54})
	if len(alerts) != 1 || alerts[0].Metric != MetricBTCDominance {
		t.Fatalf("expected dominance alert against the old baseline, got %+v", alerts)
	}
}

func TestPercentMode(t *testing.T) {
	d := NewDeltaClassifier(Threshold{Metric: MetricBTCPrice, Limit: 3, Mode: Percent})
	d.Observe(Observation{MetricBTCPrice: 100000})
	if alerts := d.Observe(Observation{MetricBTCPrice: 101000}); len(alerts) != 0 {
		t.Fatalf("1%% move should not alert, got %+v", alerts)
	}
	alerts := d.Observe(Observation{MetricBTCPrice: 97000})
	if len(alerts) != 1 || alerts[0].Delta > -3 {
		t.Fatalf("expected a drop alert, got %+v", alerts)
	}
}

func TestReportedHourlyChange(t *testing.T) {
	d := NewDeltaClassifier(Threshold{Metric: MetricBTCChange1h, Limit: 3, Mode: Reported})

	alerts := d.Observe(Observation{MetricBTCChange1h: -3.4})
	if len(alerts) != 1 || alerts[0].Delta != -3.4 {
		t.Fatalf("reported change needs no baseline, got %+v", alerts)
	}
	if alerts := d.Observe(Observation{MetricBTCChange1h: -3.8}); len(alerts) != 0 {
		t.Fatalf("same move must not alert twice, got %+v", alerts)
	}
	if alerts := d.Observe(Observation{MetricBTCChange1h: 3.1}); len(alerts) != 1 {
		t.Fatalf("a reversal past the limit should alert, got %+v", alerts)
	}
	d.Observe(Observation{MetricBTCChange1h: 1.2})
	if alerts := d.Observe(Observation{MetricBTCChange1h: 3.5}); len(alerts) != 1 {
		t.Fatalf("falling back under the limit re-arms, got %+v", alerts)
	}
}

func TestConsecutivePriceChecksDoNotDriveHourlyAlert(t *testing.T) {
	d := NewDeltaClassifier(Threshold{Metric: MetricBTCChange1h, Limit: 3, Mode: Reported})
	s := &domain.MarketSnapshot{Prices: map[string]domain.PriceQuote{"BTC": {PriceUSD: 100000, Change1hPct: 0.5}}}
	d.Observe(ObservationFromSnapshot(s))

	s.Prices["BTC"] = domain.PriceQuote{PriceUSD: 96000, Change1hPct: 1.0}
	if alerts := d.Observe(ObservationFromSnapshot(s)); len(alerts) != 0 {
		t.Fatalf("a 4%% gap between checks is not a 1h change, got %+v", alerts)
	}
}

func TestObservationFromSnapshot(t *testing.T) {
	if obs := ObservationFromSnapshot(nil); len(obs) != 0 {
		t.Fatalf("expected empty observation, got %v", obs)
	}
	s := &domain.MarketSnapshot{
		Prices:    map[string]domain.PriceQuote{"BTC": {PriceUSD: 60000, Change1hPct: 1.5}, "ETH": {PriceUSD: 3000}},
		Global:    &domain.GlobalStats{BTCDominance: 54.2},
		Sentiment: &domain.Sentiment{SentimentPoint: domain.SentimentPoint{Value: 18}},
	}
	obs := ObservationFromSnapshot(s)
	if obs[MetricFearGreed] != 18 || obs[MetricBTCDominance] != 54.2 || obs[MetricBTCPrice] != 60000 || obs[MetricETHPrice] != 3000 || obs[MetricBTCChange1h] != 1.5 {
		t.Fatalf("unexpected observation %v", obs)
	}

	d := sentimentClassifier()
	d.Observe(obs)
	if b := d.Baseline(); len(b) != 1 || b[0].Value != 18 {
		t.Fatalf("unexpected baseline %+v", b)
	}
}

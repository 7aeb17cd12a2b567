// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"errors"
	"math"
	"testing"
)

func TestTimeOfDayMultiplier(t *testing.T) {
	tests := []struct {
		hour int
		want float64
	}{
		{0, 0.7},
		{5, 0.7},
		{6, 0.9},
		{9, 0.9},
		{10, 1.0},
		{17, 1.0},
		{18, 1.2},
		{20, 1.2},
		{22, 1.2},
		{23, 0.7},
	}

	for _, tt := range tests {
		if got := TimeOfDayMultiplier(tt.hour); got != tt.want {
			t.Errorf("TimeOfDayMultiplier(%d) = %f, want %f", tt.hour, got, tt.want)
		}
	}
}

func TestConversion_MiddayBaseline(t *testing.T) {
	m := NewFunnelModel(false)

	// Midday multiplier is 1.0, so conversion is the plain product of
	// the brand-loyal seed rates.
	got := m.Conversion(ClusterBrandLoyal, 12, 2)
	want := 1.0 * 0.95 * 0.8 * 0.7 * 0.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Conversion = %f, want %f", got, want)
	}
}

func TestConversion_EveningBoostClampsPerStage(t *testing.T) {
	m := NewFunnelModel(false)

	// At 20:00 each stage rate is multiplied by 1.2 and clamped to 1
	// before the product. Exposure (1.0) and awareness (0.95*1.2>1)
	// both clamp for brand loyal.
	got := m.Conversion(ClusterBrandLoyal, 20, 2)
	want := 1.0 * 1.0 * clamp01(0.8*1.2) * clamp01(0.7*1.2) * clamp01(0.5*1.2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Conversion = %f, want %f", got, want)
	}
}

func TestConversion_PriceSensitiveEvening(t *testing.T) {
	m := NewFunnelModel(false)

	// At 20:00 every stage of the price-sensitive row stays below 1
	// after the 1.2 multiplier, so nothing clamps and the conversion is
	// the plain product 0.84 * 0.6 * 0.36 * 0.18.
	got := m.Conversion(ClusterPriceSensitive, 20, 2)
	want := 1.0 * 0.84 * 0.6 * 0.36 * 0.18
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Conversion = %f, want %f", got, want)
	}
	if math.Abs(got-0.0327) > 5e-4 {
		t.Errorf("Conversion = %f, want about 0.0327", got)
	}
}

func TestConversion_NightSuppression(t *testing.T) {
	m := NewFunnelModel(false)

	night := m.Conversion(ClusterQualitySeeker, 3, 2)
	midday := m.Conversion(ClusterQualitySeeker, 12, 2)
	if night >= midday {
		t.Errorf("Night conversion %f should be below midday %f", night, midday)
	}
}

func TestConversion_UnknownClusterFallsBack(t *testing.T) {
	m := NewFunnelModel(false)

	got := m.Conversion(Cluster(99), 12, 2)
	want := m.Conversion(ClusterUnknown, 12, 2)
	if got != want {
		t.Errorf("Unrecognized cluster conversion = %f, want unknown row %f", got, want)
	}
}

func TestConversion_WeekendBoost(t *testing.T) {
	boosted := NewFunnelModel(true)
	plain := NewFunnelModel(false)

	saturday := 6
	if b, p := boosted.Conversion(ClusterPriceSensitive, 12, saturday), plain.Conversion(ClusterPriceSensitive, 12, saturday); b <= p {
		t.Errorf("Weekend boost conversion %f should exceed unboosted %f", b, p)
	}

	// Weekday is unaffected by the toggle
	tuesday := 2
	if b, p := boosted.Conversion(ClusterPriceSensitive, 12, tuesday), plain.Conversion(ClusterPriceSensitive, 12, tuesday); b != p {
		t.Errorf("Weekday conversion %f should equal unboosted %f", b, p)
	}
}

func TestAdjustRate(t *testing.T) {
	m := NewFunnelModel(false)

	before, err := m.Rates(ClusterImpulseBuyer)
	if err != nil {
		t.Fatalf("Rates() error = %v", err)
	}

	if err := m.AdjustRate(ClusterImpulseBuyer, StageAction, 0.05); err != nil {
		t.Fatalf("AdjustRate() error = %v", err)
	}

	after, _ := m.Rates(ClusterImpulseBuyer)
	want := before[StageAction] + 0.05*(1-before[StageAction])
	if math.Abs(after[StageAction]-want) > 1e-9 {
		t.Errorf("Action rate = %f, want %f", after[StageAction], want)
	}
}

func TestAdjustRate_ExposurePinned(t *testing.T) {
	m := NewFunnelModel(false)

	if err := m.AdjustRate(ClusterImpulseBuyer, StageExposure, 0.5); err != nil {
		t.Fatalf("AdjustRate() error = %v", err)
	}
	rates, _ := m.Rates(ClusterImpulseBuyer)
	if rates[StageExposure] != 1.0 {
		t.Errorf("Exposure rate = %f, want pinned at 1", rates[StageExposure])
	}
}

func TestAdjustRate_NeverExceedsOne(t *testing.T) {
	m := NewFunnelModel(false)

	for i := 0; i < 1000; i++ {
		if err := m.AdjustRate(ClusterBrandLoyal, StageAction, 0.5); err != nil {
			t.Fatalf("AdjustRate() error = %v", err)
		}
	}
	rates, _ := m.Rates(ClusterBrandLoyal)
	if rates[StageAction] > 1.0 {
		t.Errorf("Action rate = %f, exceeded 1 after repeated adjustment", rates[StageAction])
	}
}

func TestDecayRate(t *testing.T) {
	m := NewFunnelModel(false)

	before, _ := m.Rates(ClusterConvenienceFocused)
	if err := m.DecayRate(ClusterConvenienceFocused, StageAction, 0.05); err != nil {
		t.Fatalf("DecayRate() error = %v", err)
	}
	after, _ := m.Rates(ClusterConvenienceFocused)

	want := before[StageAction] * 0.95
	if math.Abs(after[StageAction]-want) > 1e-9 {
		t.Errorf("Action rate = %f, want %f", after[StageAction], want)
	}
}

func TestRates_UnrecognizedCluster(t *testing.T) {
	m := NewFunnelModel(false)
	if _, err := m.Rates(Cluster(99)); !errors.Is(err, ErrUnknownCluster) {
		t.Errorf("Rates() error = %v, want ErrUnknownCluster", err)
	}
}

func TestFunnel_SnapshotRestore(t *testing.T) {
	m := NewFunnelModel(false)
	if err := m.AdjustRate(ClusterPriceSensitive, StageDesire, 0.2); err != nil {
		t.Fatalf("AdjustRate() error = %v", err)
	}

	snap := m.Snapshot()

	fresh := NewFunnelModel(false)
	fresh.Restore(snap)

	got, _ := fresh.Rates(ClusterPriceSensitive)
	want, _ := m.Rates(ClusterPriceSensitive)
	if got != want {
		t.Errorf("Restored rates = %v, want %v", got, want)
	}
}

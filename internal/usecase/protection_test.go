package usecase

import (
	"testing"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
)

func TestProtectionDefaultsUncapped(t *testing.T) {
	p := NewProtectionCalculator(models.Multipliers{})
	got, err := p.Compute(5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StopLossPercent != 10 || got.TakeProfitPercent != 15 || got.Leverage != 5 {
		t.Fatalf("unexpected protection %+v", got)
	}
}

func TestProtectionOverrideIsCapped(t *testing.T) {
	p := NewProtectionCalculator(models.Multipliers{})
	got, err := p.Compute(10, &models.Multipliers{StopLoss: 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StopLossPercent != 50 {
		t.Fatalf("stop loss should be capped at 50, got %v", got.StopLossPercent)
	}
	if got.TakeProfitPercent != 30 {
		t.Fatalf("take profit should keep default multiplier, got %v", got.TakeProfitPercent)
	}
}

func TestProtectionOverrideRaisesCap(t *testing.T) {
	p := NewProtectionCalculator(models.Multipliers{})
	got, err := p.Compute(2, &models.Multipliers{TakeProfit: 8, MaxTakeProfit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TakeProfitPercent != 16 {
		t.Fatalf("expected 16, got %v", got.TakeProfitPercent)
	}
}

func TestProtectionLeverageOutOfRange(t *testing.T) {
	p := NewProtectionCalculator(models.Multipliers{})
	for _, lev := range []int{0, -1, 11, 100} {
		_, err := p.Compute(lev, nil)
		if !errs.Is(err, errs.KindValidation) || errs.CodeOf(err, "") != "leverage_out_of_range" {
			t.Fatalf("leverage %d: expected validation error, got %v", lev, err)
		}
	}
	for lev := MinLeverage; lev <= MaxLeverage; lev++ {
		got, err := p.Compute(lev, nil)
		if err != nil {
			t.Fatalf("leverage %d: %v", lev, err)
		}
		if got.StopLossPercent <= 0 || got.TakeProfitPercent <= 0 {
			t.Fatalf("leverage %d: protection must be positive, got %+v", lev, got)
		}
	}
}

func TestProtectionNonPositiveIsFatalConfig(t *testing.T) {
	p := NewProtectionCalculator(models.Multipliers{})
	_, err := p.Compute(3, &models.Multipliers{StopLoss: -1})
	if !errs.Is(err, errs.KindFatalConfig) {
		t.Fatalf("expected fatal config error, got %v", err)
	}
}

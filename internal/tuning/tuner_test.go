package tuning

import (
	"testing"

	"github.com/hmemcore/hmem/internal/models"
)

func trace(satisfaction models.Satisfaction) models.ObservabilityTrace {
	return models.ObservabilityTrace{Satisfaction: satisfaction}
}

func TestTunerAdjustIncreasesOnMoreSatisfied(t *testing.T) {
	tuner := NewTuner(0.5, 0.2, 0.8)
	traces := []models.ObservabilityTrace{trace(models.SatisfactionSatisfied), trace(models.SatisfactionSatisfied), trace(models.SatisfactionUnsatisfied)}
	tuner.Adjust(traces)
	if tuner.Alpha() <= 0.5 {
		t.Fatalf("more satisfied than unsatisfied should raise alpha, got %v", tuner.Alpha())
	}
}

func TestTunerAdjustDecreasesOnMoreUnsatisfied(t *testing.T) {
	tuner := NewTuner(0.5, 0.2, 0.8)
	traces := []models.ObservabilityTrace{trace(models.SatisfactionUnsatisfied), trace(models.SatisfactionUnsatisfied), trace(models.SatisfactionSatisfied)}
	tuner.Adjust(traces)
	if tuner.Alpha() >= 0.5 {
		t.Fatalf("more unsatisfied than satisfied should lower alpha, got %v", tuner.Alpha())
	}
}

func TestTunerAdjustClampsToMax(t *testing.T) {
	tuner := NewTuner(0.78, 0.2, 0.8)
	for i := 0; i < 5; i++ {
		tuner.Adjust([]models.ObservabilityTrace{trace(models.SatisfactionSatisfied)})
	}
	if tuner.Alpha() > 0.8 {
		t.Fatalf("alpha should never exceed alphaMax, got %v", tuner.Alpha())
	}
}

func TestTunerAdjustClampsToMin(t *testing.T) {
	tuner := NewTuner(0.22, 0.2, 0.8)
	for i := 0; i < 5; i++ {
		tuner.Adjust([]models.ObservabilityTrace{trace(models.SatisfactionUnsatisfied)})
	}
	if tuner.Alpha() < 0.2 {
		t.Fatalf("alpha should never go below alphaMin, got %v", tuner.Alpha())
	}
}

func TestTunerAdjustNoRatedTracesNoOp(t *testing.T) {
	tuner := NewTuner(0.5, 0.2, 0.8)
	tuner.Adjust([]models.ObservabilityTrace{trace(models.SatisfactionUnknown)})
	if tuner.Alpha() != 0.5 {
		t.Fatalf("unrated traces should leave alpha unchanged, got %v", tuner.Alpha())
	}
}

func TestTunerAdjustTieLeavesUnchanged(t *testing.T) {
	tuner := NewTuner(0.5, 0.2, 0.8)
	tuner.Adjust([]models.ObservabilityTrace{trace(models.SatisfactionSatisfied), trace(models.SatisfactionUnsatisfied)})
	if tuner.Alpha() != 0.5 {
		t.Fatalf("a tied satisfaction balance should leave alpha unchanged, got %v", tuner.Alpha())
	}
}

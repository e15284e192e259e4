package models

import "testing"

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		name           string
		violationCount int
		maxViolations  int
		want           RiskLevel
	}{
		{name: "clean attempt", violationCount: 0, maxViolations: 4, want: RiskLow},
		{name: "below half", violationCount: 1, maxViolations: 4, want: RiskMedium},
		{name: "at half", violationCount: 2, maxViolations: 4, want: RiskMedium},
		{name: "above half", violationCount: 3, maxViolations: 4, want: RiskHigh},
		{name: "at threshold", violationCount: 4, maxViolations: 4, want: RiskHigh},
		{name: "over threshold", violationCount: 5, maxViolations: 4, want: RiskCritical},
		{name: "zero threshold clean", violationCount: 0, maxViolations: 0, want: RiskLow},
		{name: "zero threshold violated", violationCount: 1, maxViolations: 0, want: RiskCritical},
		{name: "odd threshold half rounds down", violationCount: 2, maxViolations: 5, want: RiskMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskLevelFor(tt.violationCount, tt.maxViolations); got != tt.want {
				t.Errorf("RiskLevelFor(%d, %d) = %s, want %s", tt.violationCount, tt.maxViolations, got, tt.want)
			}
		})
	}
}

func TestRiskLevelFor_NonDecreasing(t *testing.T) {
	order := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

	for maxViolations := 0; maxViolations <= 10; maxViolations++ {
		prev := RiskLow
		for count := 0; count <= maxViolations+3; count++ {
			level := RiskLevelFor(count, maxViolations)
			if order[level] < order[prev] {
				t.Fatalf("RiskLevelFor(%d, %d) = %s dropped below %s", count, maxViolations, level, prev)
			}
			prev = level
		}
	}
}

func TestIntegrityEventType_Valid(t *testing.T) {
	valid := []IntegrityEventType{
		EventTabSwitch, EventWindowBlur, EventCopyAttempt, EventRightClick,
		EventDevToolsOpen, EventFullscreenExit, EventMultipleFaces, EventNoFace,
	}
	for _, eventType := range valid {
		if !eventType.Valid() {
			t.Errorf("Valid() = false for %s", eventType)
		}
	}

	if IntegrityEventType("screenshot_taken").Valid() {
		t.Error("Valid() accepted an unknown event type")
	}
}

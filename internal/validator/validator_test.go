package validator

import (
	"strings"
	"testing"

	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
)

func newTestValidator(mode string) *Validator {
	return New(0.10, mode, logger.New("validator_test", "", ""))
}

func TestExtractClaims(t *testing.T) {
	text := "Your heart rate was 87 bpm and you walked 10432 steps, burning 512.5 kcal."
	claims := ExtractClaims(text)
	if len(claims) != 3 {
		t.Fatalf("ExtractClaims() returned %d claims, want 3", len(claims))
	}
	if claims[0].Value != 87 || claims[0].Unit != "bpm" {
		t.Errorf("claim 0 = (%v, %q), want (87, bpm)", claims[0].Value, claims[0].Unit)
	}
	if claims[1].Value != 10432 || claims[1].Unit != "steps" {
		t.Errorf("claim 1 = (%v, %q), want (10432, steps)", claims[1].Value, claims[1].Unit)
	}
	if claims[2].Value != 512.5 || claims[2].Unit != "kcal" {
		t.Errorf("claim 2 = (%v, %q), want (512.5, kcal)", claims[2].Value, claims[2].Unit)
	}
}

func TestExtractClaimsIsRestartable(t *testing.T) {
	text := "Slept 7.5 hours at 92% efficiency."
	first := ExtractClaims(text)
	second := ExtractClaims(text)
	if len(first) != len(second) {
		t.Fatalf("repeated extraction differs: %d vs %d claims", len(first), len(second))
	}
	for i := range first {
		if first[i].Value != second[i].Value || first[i].Unit != second[i].Unit {
			t.Errorf("claim %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestValidateResponseExactMatch(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	result := v.ValidateResponse("Your heart rate was 87 bpm", models.ToolResults{"heart_rate": 87.0})

	if !result.Passed {
		t.Fatal("ValidateResponse() passed = false, want true")
	}
	if len(result.Claims) != 1 {
		t.Fatalf("got %d claims, want 1", len(result.Claims))
	}
	if result.Claims[0].State != StateExact {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateExact)
	}
	if result.Claims[0].MatchedField != "heart_rate" {
		t.Errorf("matched field = %q, want heart_rate", result.Claims[0].MatchedField)
	}
}

func TestValidateResponseFuzzyMatch(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	// 90 is within 10% of 95.
	result := v.ValidateResponse("Your heart rate was 90 bpm", models.ToolResults{"heart_rate": 95.0})

	if !result.Passed {
		t.Fatal("ValidateResponse() passed = false, want true")
	}
	if result.Claims[0].State != StateFuzzy {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateFuzzy)
	}
}

func TestValidateResponseUnmatched(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	// 130 is not within 10% of 95.
	result := v.ValidateResponse("Your heart rate was 130 bpm", models.ToolResults{"heart_rate": 95.0})

	if result.Passed {
		t.Fatal("ValidateResponse() passed = true, want false")
	}
	if result.Claims[0].State != StateUnmatched {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateUnmatched)
	}
}

func TestValidateResponseEmptyToolResults(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	result := v.ValidateResponse("You took 9500 steps", models.ToolResults{})

	if result.Passed {
		t.Fatal("passed = true with no ground truth, want false")
	}
	if result.Claims[0].State != StateUnmatched {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateUnmatched)
	}
}

func TestValidateResponseUnitHintNarrowsSearch(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	// Without the bpm hint the claim 72 would match "weight_kg": 72 exactly.
	tools := models.ToolResults{"weight_kg": 72.0, "heart_rate": 88.0}
	result := v.ValidateResponse("Your heart rate was 72 bpm", tools)

	if result.Claims[0].MatchedField != "heart_rate" {
		t.Errorf("matched field = %q, want heart_rate", result.Claims[0].MatchedField)
	}
	if result.Claims[0].State != StateUnmatched {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateUnmatched)
	}
}

func TestValidateResponseNestedToolResults(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	tools := models.ToolResults{
		"sleep": map[string]interface{}{"duration_hours": 7.5},
	}
	result := v.ValidateResponse("You slept 7.5 hours", tools)

	if !result.Passed {
		t.Fatal("passed = false, want true")
	}
	if result.Claims[0].MatchedField != "sleep.duration_hours" {
		t.Errorf("matched field = %q, want sleep.duration_hours", result.Claims[0].MatchedField)
	}
}

func TestCorrectSubstitutesToolValue(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	text := "Your heart rate was 130 bpm today"
	result := v.ValidateResponse(text, models.ToolResults{"heart_rate": 95.0})

	corrected := v.Correct(text, result)
	if corrected != "Your heart rate was 95 bpm today" {
		t.Errorf("Correct() = %q", corrected)
	}
	if result.Claims[0].State != StateCorrected {
		t.Errorf("claim state = %s, want %s", result.Claims[0].State, StateCorrected)
	}
	if result.CorrectedText != corrected {
		t.Error("CorrectedText not recorded on result")
	}
}

func TestCorrectFlagMode(t *testing.T) {
	v := newTestValidator(ModeFlag)
	text := "Your heart rate was 130 bpm today"
	result := v.ValidateResponse(text, models.ToolResults{"heart_rate": 95.0})

	corrected := v.Correct(text, result)
	if !strings.Contains(corrected, "130 (unverified)") {
		t.Errorf("Correct() = %q, want the claim flagged", corrected)
	}
	// Flagging must not introduce the tool value into the text.
	if strings.Contains(corrected, "95") {
		t.Errorf("flag mode substituted a value: %q", corrected)
	}
}

func TestCorrectNeverInventsValues(t *testing.T) {
	// Substitute mode with no tool data has nothing truthful to substitute;
	// it must fall back to flagging.
	v := newTestValidator(ModeSubstitute)
	text := "You burned 600 kcal"
	result := v.ValidateResponse(text, models.ToolResults{})

	corrected := v.Correct(text, result)
	if !strings.Contains(corrected, "600 (unverified)") {
		t.Errorf("Correct() = %q, want flagged claim", corrected)
	}
}

func TestCorrectLeavesMatchedClaimsAlone(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	text := "87 bpm over 9999 steps"
	tools := models.ToolResults{"heart_rate": 87.0, "steps": 4200.0}
	result := v.ValidateResponse(text, tools)

	corrected := v.Correct(text, result)
	if !strings.HasPrefix(corrected, "87 bpm") {
		t.Errorf("matched claim was rewritten: %q", corrected)
	}
	if !strings.Contains(corrected, "4200 steps") {
		t.Errorf("unmatched claim not substituted: %q", corrected)
	}
}

func TestMultipleClaimsMixedStates(t *testing.T) {
	v := newTestValidator(ModeSubstitute)
	tools := models.ToolResults{"heart_rate": 87.0, "steps": 10000.0}
	result := v.ValidateResponse("87 bpm and 10500 steps and 42 km", tools)

	if result.Passed {
		t.Fatal("passed = true, want false")
	}
	states := []MatchState{StateExact, StateFuzzy, StateUnmatched}
	for i, want := range states {
		if result.Claims[i].State != want {
			t.Errorf("claim %d state = %s, want %s", i, result.Claims[i].State, want)
		}
	}
}

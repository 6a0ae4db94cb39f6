package validator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
)

// MatchState classifies one numeric claim against tool ground truth.
type MatchState string

const (
	StateExact     MatchState = "exact"     // equal within floating-point epsilon
	StateFuzzy     MatchState = "fuzzy"     // within the relative tolerance
	StateUnmatched MatchState = "unmatched" // no tool value close enough
	StateCorrected MatchState = "corrected" // was unmatched, then rewritten or flagged
)

// Claim is one numeric statement extracted from generated text, with enough
// position information for the correction pass to rewrite it in place.
type Claim struct {
	Value  float64    `json:"value"`
	Unit   string     `json:"unit,omitempty"`
	Window string     `json:"window"`
	State  MatchState `json:"state"`

	// Field and tool value this claim resolved against. For unmatched claims
	// these hold the nearest candidate, which the correction pass may
	// substitute; empty/zero when tool results held no candidate at all.
	MatchedField string  `json:"matched_field,omitempty"`
	MatchedValue float64 `json:"matched_value,omitempty"`

	numStart, numEnd int // byte offsets of the numeric token in the source text
}

// Result is the outcome of validating one generated response.
// Passed is true iff no claim ended up unmatched.
type Result struct {
	Claims        []Claim `json:"claims"`
	Passed        bool    `json:"passed"`
	CorrectedText string  `json:"corrected_text,omitempty"`
}

// Correction strategies for unmatched claims.
const (
	ModeSubstitute = "substitute" // replace the number with the nearest tool value
	ModeFlag       = "flag"       // wrap the claim in an uncertainty marker
)

// epsilon for "exact" comparison, scaled by magnitude below.
const floatEpsilon = 1e-9

// Validator cross-checks numeric claims in generated text against the
// structured tool results that produced the answer. It can flag or rewrite a
// wrong number but never introduces a value that is not present in the tool
// results.
type Validator struct {
	tolerance      float64
	correctionMode string
	logger         *logger.Logger
}

func New(tolerance float64, correctionMode string, log *logger.Logger) *Validator {
	return &Validator{tolerance: tolerance, correctionMode: correctionMode, logger: log}
}

// claimPattern matches a number optionally followed by one of the domain
// units. Longest unit alternatives come first so "kcal" is not cut to "k".
var claimPattern = regexp.MustCompile(
	`(?i)(-?\d+(?:\.\d+)?)[ \t]*(mg/dL|mmHg|calories|minutes|steps|hours|bpm|kcal|mins|lbs|hrs|kg|km|mi|%)?`)

// unitFieldHints maps a normalized unit to substrings of tool-result field
// names that plausibly carry values in that unit. A hint narrows the search;
// it never widens it.
var unitFieldHints = map[string][]string{
	"bpm":   {"heart_rate", "pulse", "bpm"},
	"kg":    {"weight", "mass"},
	"lbs":   {"weight", "mass"},
	"%":     {"percent", "spo2", "oxygen", "saturation", "body_fat"},
	"steps": {"steps"},
	"kcal":  {"calorie", "kcal", "energy"},
	"hours": {"sleep", "hour", "duration"},
	"mins":  {"minute", "duration", "active"},
	"km":    {"distance", "km"},
	"mi":    {"distance", "mile"},
	"mg/dl": {"glucose", "sugar"},
	"mmhg":  {"pressure", "systolic", "diastolic"},
}

// unit aliases collapse to one canonical form so hints apply uniformly.
var unitAliases = map[string]string{
	"calories": "kcal",
	"hrs":      "hours",
	"minutes":  "mins",
}

const windowRadius = 30

// ExtractClaims scans the text for numeric claims. The scan is a pure
// function of the input: calling it again yields the same sequence.
func ExtractClaims(text string) []Claim {
	matches := claimPattern.FindAllStringSubmatchIndex(text, -1)
	claims := make([]Claim, 0, len(matches))
	for _, m := range matches {
		numStart, numEnd := m[2], m[3]
		value, err := strconv.ParseFloat(text[numStart:numEnd], 64)
		if err != nil {
			continue
		}

		unit := ""
		if m[4] >= 0 {
			unit = strings.ToLower(text[m[4]:m[5]])
			if canonical, ok := unitAliases[unit]; ok {
				unit = canonical
			}
		}

		winStart := numStart - windowRadius
		if winStart < 0 {
			winStart = 0
		}
		winEnd := m[1] + windowRadius
		if winEnd > len(text) {
			winEnd = len(text)
		}

		claims = append(claims, Claim{
			Value:    value,
			Unit:     unit,
			Window:   text[winStart:winEnd],
			numStart: numStart,
			numEnd:   numEnd,
		})
	}
	return claims
}

// ValidateResponse checks every numeric claim in text against toolResults.
// With empty tool results every claim is unmatched by construction: there is
// no ground truth to confirm against, which is a reportable outcome, not a
// validator fault.
func (v *Validator) ValidateResponse(text string, toolResults models.ToolResults) *Result {
	claims := ExtractClaims(text)
	flat := toolResults.FlattenNumeric()

	passed := true
	for i := range claims {
		v.classify(&claims[i], flat)
		if claims[i].State == StateUnmatched {
			passed = false
		}
	}

	if !passed {
		v.logger.WithPayload(map[string]interface{}{
			"claims": len(claims),
		}).Warn("numeric validation found unmatched claims")
	}
	return &Result{Claims: claims, Passed: passed}
}

// classify resolves one claim against the flattened tool values, preferring
// fields the unit hints at. The nearest candidate is recorded even when the
// claim ends up unmatched, so the correction pass has something to
// substitute.
func (v *Validator) classify(claim *Claim, flat map[string]float64) {
	candidates := flat
	if claim.Unit != "" {
		if narrowed := narrowByUnit(flat, claim.Unit); len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	bestField := ""
	bestDiff := math.Inf(1)
	for field, value := range candidates {
		diff := math.Abs(claim.Value - value)
		if diff < bestDiff {
			bestDiff = diff
			bestField = field
		}
	}

	if bestField == "" {
		claim.State = StateUnmatched
		return
	}

	claim.MatchedField = bestField
	claim.MatchedValue = candidates[bestField]

	switch {
	case bestDiff <= floatEpsilon*math.Max(1, math.Abs(claim.MatchedValue)):
		claim.State = StateExact
	case bestDiff <= v.tolerance*math.Abs(claim.MatchedValue):
		claim.State = StateFuzzy
	default:
		claim.State = StateUnmatched
	}
}

func narrowByUnit(flat map[string]float64, unit string) map[string]float64 {
	hints, ok := unitFieldHints[unit]
	if !ok {
		return nil
	}
	narrowed := make(map[string]float64)
	for field, value := range flat {
		lower := strings.ToLower(field)
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				narrowed[field] = value
				break
			}
		}
	}
	return narrowed
}

// Correct rewrites the unmatched claims in text according to the configured
// strategy and returns the corrected text. In substitute mode the wrong
// number is replaced by its nearest tool-sourced value; claims with no
// candidate fall back to flagging, since there is nothing truthful to
// substitute. Affected claims move to the corrected state and the result's
// CorrectedText is set. Matched claims and the rest of the text are left
// untouched.
func (v *Validator) Correct(text string, result *Result) string {
	corrected := text
	// Rewrite back to front so earlier claim offsets stay valid.
	for i := len(result.Claims) - 1; i >= 0; i-- {
		claim := &result.Claims[i]
		if claim.State != StateUnmatched {
			continue
		}

		var replacement string
		if v.correctionMode == ModeSubstitute && claim.MatchedField != "" {
			replacement = formatValue(claim.MatchedValue)
		} else {
			replacement = fmt.Sprintf("%s (unverified)", corrected[claim.numStart:claim.numEnd])
		}

		corrected = corrected[:claim.numStart] + replacement + corrected[claim.numEnd:]
		claim.State = StateCorrected
	}

	result.CorrectedText = corrected
	return corrected
}

// formatValue prints a tool value the way a person would write it: integers
// without a decimal point, everything else with minimal digits.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

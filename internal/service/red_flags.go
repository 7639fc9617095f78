package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	redFlagTopCandidates = 3
	redFlagMinScore      = 0.6
	maxRedFlags          = 5

	hypoxemiaSpO2  = 90.0
	tachycardiaHR  = 120.0
	hypotensionSBP = 90.0
)

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

type highRiskCondition struct {
	code     string
	patterns []string
	flag     string
}

var highRiskConditions = []highRiskCondition{
	{
		code:     "ACS",
		patterns: []string{"acute coronary", "myocardial"},
		flag:     "Possible acute coronary syndrome - immediate ECG and cardiac biomarkers required",
	},
	{
		code:     "AORTIC_DISSECTION",
		patterns: []string{"aortic dissection"},
		flag:     "Possible aortic dissection - STAT CT angiography and blood pressure control needed",
	},
	{
		code:     "PE",
		patterns: []string{"pulmonary embolism"},
		flag:     "Possible pulmonary embolism - consider immediate anticoagulation",
	},
}

// RedFlagDetector raises urgent findings from the ranked differential, the
// presenting symptoms and any vital signs recorded among the labs
type RedFlagDetector struct {
	logger *logrus.Logger
}

// NewRedFlagDetector creates a new RedFlagDetector
func NewRedFlagDetector(logger *logrus.Logger) *RedFlagDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedFlagDetector{logger: logger}
}

// Detect returns at most five red flags in detection order
func (d *RedFlagDetector) Detect(profile *domain.PatientProfile, ranked []*domain.DiagnosisCandidate) []domain.RedFlag {
	var flags []domain.RedFlag
	raised := make(map[string]bool)

	for i, c := range ranked {
		if i == redFlagTopCandidates {
			break
		}
		if c.Excluded || c.Score <= redFlagMinScore {
			continue
		}
		name := strings.ToLower(c.CanonicalName)
		for _, cond := range highRiskConditions {
			if raised[cond.code] || !containsAny(name, cond.patterns) {
				continue
			}
			raised[cond.code] = true
			flags = append(flags, domain.RedFlag{
				Severity: domain.SEVERITY_CRITICAL,
				Flag:     cond.flag,
				Reason:   fmt.Sprintf("%s ranked %d with score %.2f", c.CanonicalName, c.Rank, c.Score),
			})
			break
		}
	}

	if profile != nil {
		symptoms := strings.ToLower(strings.Join(profile.Symptoms, " "))
		if !raised["ACS"] && strings.Contains(symptoms, "chest pain") &&
			(strings.Contains(symptoms, "diaphoresis") || strings.Contains(symptoms, "sweating")) {
			flags = append(flags, domain.RedFlag{
				Severity: domain.SEVERITY_WARNING,
				Flag:     "Chest pain with diaphoresis - consider cardiac etiology",
				Reason:   "symptom combination",
			})
		}
		flags = append(flags, vitalFlags(profile.Labs)...)
	}

	if len(flags) > maxRedFlags {
		flags = flags[:maxRedFlags]
	}
	if len(flags) > 0 {
		d.logger.WithField("red_flags", len(flags)).Info("Red flags detected")
	}
	return flags
}

func vitalFlags(labs map[string]string) []domain.RedFlag {
	if len(labs) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(labs))
	for k, v := range labs {
		normalized[labKey(k)] = v
	}

	var flags []domain.RedFlag
	if v, ok := vitalValue(normalized, "spo2", "oxygensaturation", "o2sat", "o2"); ok && v < hypoxemiaSpO2 {
		flags = append(flags, domain.RedFlag{
			Severity: domain.SEVERITY_CRITICAL,
			Flag:     fmt.Sprintf("Hypoxemia detected (SpO2: %s%%) - immediate oxygen supplementation required", formatVital(v)),
			Reason:   "SpO2 below 90",
		})
	}
	if v, ok := vitalValue(normalized, "hr", "heartrate", "pulse"); ok && v > tachycardiaHR {
		flags = append(flags, domain.RedFlag{
			Severity: domain.SEVERITY_WARNING,
			Flag:     fmt.Sprintf("Tachycardia (HR: %s bpm) - assess for shock, sepsis, or arrhythmia", formatVital(v)),
			Reason:   "heart rate above 120",
		})
	}
	if v, ok := vitalValue(normalized, "sbp", "systolicbp", "systolic"); ok && v < hypotensionSBP {
		flags = append(flags, domain.RedFlag{
			Severity: domain.SEVERITY_CRITICAL,
			Flag:     fmt.Sprintf("Hypotension (SBP: %s mmHg) - assess for shock", formatVital(v)),
			Reason:   "systolic blood pressure below 90",
		})
	}
	return flags
}

// vitalValue returns the first numeric reading found under any of keys
func vitalValue(labs map[string]string, keys ...string) (float64, bool) {
	for _, k := range keys {
		raw, ok := labs[k]
		if !ok {
			continue
		}
		m := leadingNumber.FindString(raw)
		if m == "" {
			continue
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

func formatVital(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

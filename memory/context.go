package memory

import (
	"fmt"
	"strings"
)

const contextRule = "================================================================================"

// RenderContext produces the memory block injected into planning and
// generation prompts. It returns an empty string for repositories with no
// recorded attempts; this is the only channel through which past runs
// influence future generation.
func (s *Store) RenderContext(repoURL string) string {
	record := s.Load(repoURL)
	if record.TotalAttempts == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n" + contextRule + "\n")
	b.WriteString("RESURRECTION MEMORY (this repository has been resurrected before)\n")
	b.WriteString(contextRule + "\n\n")

	b.WriteString("PAST RESURRECTION STATISTICS:\n")
	fmt.Fprintf(&b, "   - Total Attempts: %d\n", record.TotalAttempts)
	fmt.Fprintf(&b, "   - Successful: %d\n", record.SuccessfulAttempts)
	fmt.Fprintf(&b, "   - Failed: %d\n", record.FailedAttempts)
	if record.LastResurrection != nil {
		fmt.Fprintf(&b, "   - Last Resurrection: %s\n", record.LastResurrection.Format("2006-01-02 15:04:05 UTC"))
	}

	if len(record.Failures) > 0 {
		b.WriteString("\nPAST FAILURES (avoid these mistakes):\n")
		for _, failure := range lastN(record.Failures, 5) {
			fmt.Fprintf(&b, "   [x] %s: %s\n", failure.ErrorType, truncate(failure.ErrorMessage, 100))
			fmt.Fprintf(&b, "       Lesson: %s\n", failure.LessonLearned)
		}
	}

	if len(record.SuccessfulPatterns) > 0 {
		b.WriteString("\nSUCCESSFUL PATTERNS (use these again):\n")
		for _, pattern := range record.SuccessfulPatterns {
			fmt.Fprintf(&b, "   [+] %s\n", pattern)
		}
	}

	if len(record.DependencyIssues) > 0 {
		b.WriteString("\nDEPENDENCY PAIN POINTS (handle carefully):\n")
		for _, issue := range record.DependencyIssues {
			fmt.Fprintf(&b, "   [!] %s: %s\n", issue.Package, issue.Issue)
		}
	}

	if len(record.Decisions) > 0 {
		b.WriteString("\nPAST DECISIONS:\n")
		for _, decision := range lastN(record.Decisions, 5) {
			marker := "o"
			if decision.Outcome == "success" {
				marker = "+"
			}
			fmt.Fprintf(&b, "   [%s] %s\n", marker, decision.Decision)
		}
	}

	if record.TechStack.DetectedBackend != "" {
		b.WriteString("\nREMEMBERED TECH STACK:\n")
		fmt.Fprintf(&b, "   - Backend: %s\n", record.TechStack.DetectedBackend)
		fmt.Fprintf(&b, "   - Frontend: %s\n", record.TechStack.DetectedFrontend)
		fmt.Fprintf(&b, "   - Database: %s\n", record.TechStack.DetectedDatabase)
	}

	b.WriteString("\n" + contextRule + "\n\n")
	b.WriteString("USE THIS MEMORY TO MAKE BETTER DECISIONS:\n")
	b.WriteString("- Avoid patterns that failed before\n")
	b.WriteString("- Repeat patterns that succeeded\n")
	b.WriteString("- Handle known dependency issues proactively\n\n")

	return b.String()
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

package lazarus

import (
	"fmt"
	"strings"

	"github.com/lazarus-engine/lazarus/scanner"
)

// buildPlanPrompt asks the model for a high-level modernization plan:
// audit the legacy API contract, rebuild the backend behind the same
// endpoints, rebuild the frontend, and orchestrate both.
func buildPlanPrompt(repoURL, instructions, memoryContext string, scan *scanner.Result) string {
	var b strings.Builder
	b.WriteString("ACT AS: Senior Full-Stack Migration Architect.\n")
	b.WriteString("PROJECT: Lazarus (Autonomous Resurrection Engine).\n\n")
	fmt.Fprintf(&b, "We are migrating a legacy repository at: %s\n", repoURL)
	if instructions != "" {
		fmt.Fprintf(&b, "User instructions: %s\n", instructions)
	}
	if memoryContext != "" {
		b.WriteString("\n")
		b.WriteString(memoryContext)
		b.WriteString("\n")
	}
	writeScanSummary(&b, scan)
	b.WriteString(`
YOUR MISSION: architect a modern replacement, do not just patch files.

PHASE 1 - CONTRACT AUDIT: list every API endpoint the legacy backend
exposes. The new backend MUST support these exact endpoint names.

PHASE 2 - BACKEND: target ./modernized_stack/backend. Use Python FastAPI
or Node.js Express. Keep the same database and connection code. Add CORS.

PHASE 3 - FRONTEND: target ./modernized_stack/frontend. Next.js App
Router. Rewrite legacy frontend logic as React components.

PHASE 4 - ORCHESTRATION: plan a root-level docker-compose.yml under
./modernized_stack.

OUTPUT: a concise, high-level architectural plan following these phases.
`)
	return b.String()
}

// buildCodePrompt asks the model for the complete generated file set. The
// contract is a single JSON object so the response parses without any
// surrounding prose.
func buildCodePrompt(plan, memoryContext, errorContext string, scan *scanner.Result) string {
	var b strings.Builder
	b.WriteString("ACT AS: Senior Full-Stack Migration Architect.\n\n")
	if memoryContext != "" {
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}
	b.WriteString("PLAN:\n")
	b.WriteString(plan)
	b.WriteString("\n")
	if errorContext != "" {
		b.WriteString("\n")
		b.WriteString(errorContext)
		b.WriteString("\n")
	}
	writeScanFiles(&b, scan)
	b.WriteString(`
TASK: generate the COMPLETE file system for the new modernized_stack.

CRITICAL CONSTRAINTS:
1. All logic lives inside ./modernized_stack/:
   - modernized_stack/backend/main.py (or server.js)
   - modernized_stack/frontend/app/page.tsx
   - modernized_stack/preview.html (interactive static mock)
2. Preserve EVERY legacy endpoint and EVERY database query exactly.
   Change appearance and code style, never behavior.
3. preview.html must simulate backend calls with embedded JavaScript so
   the flow is testable with the real backend offline.
4. External libraries (FastAPI, Uvicorn, Flask, Express, React) are
   allowed as needed.

RETURN JSON in exactly this shape, and ONLY JSON:
{
  "files": [
    { "filename": "modernized_stack/backend/main.py", "content": "..." }
  ],
  "entrypoint": "modernized_stack/backend/main.py"
}
`)
	return b.String()
}

func writeScanSummary(b *strings.Builder, scan *scanner.Result) {
	if scan == nil {
		return
	}
	fmt.Fprintf(b, "\nLEGACY REPOSITORY: %d files scanned\n", len(scan.Files))
	if scan.TechStack.Backend.Framework != "" {
		fmt.Fprintf(b, "Backend framework: %s\n", scan.TechStack.Backend.Framework)
	}
	if scan.TechStack.Backend.Database != "" {
		fmt.Fprintf(b, "Database: %s (keep the same database)\n", scan.TechStack.Backend.Database)
	}
	if scan.TechStack.Frontend.Framework != "" {
		fmt.Fprintf(b, "Frontend framework: %s\n", scan.TechStack.Frontend.Framework)
	}
	if len(scan.APIEndpoints) > 0 {
		b.WriteString("Detected API endpoints (preserve every one):\n")
		for _, endpoint := range scan.APIEndpoints {
			fmt.Fprintf(b, "  - %s\n", endpoint)
		}
	}
	if len(scan.MustPreserve) > 0 {
		b.WriteString("Must preserve:\n")
		for _, item := range scan.MustPreserve {
			fmt.Fprintf(b, "  - %s\n", item)
		}
	}
}

func writeScanFiles(b *strings.Builder, scan *scanner.Result) {
	if scan == nil || len(scan.Files) == 0 {
		b.WriteString("\n[WARNING: no deep scan available, generate from the plan only]\n")
		return
	}
	fmt.Fprintf(b, "\nORIGINAL FILES (%d total, output an enhanced version of every one):\n", len(scan.Files))
	for _, file := range scan.Files {
		fmt.Fprintf(b, "\n--- %s ---\n```%s\n%s\n```\n", file.Path, file.Language, file.Content)
	}
}

// errorContextBlock renders the failure history of the current run for the
// regeneration prompt. Later attempts see every prior error, bounded by an
// entry and character budget.
func errorContextBlock(errs []AttemptError, maxEntries, maxChars int) string {
	if len(errs) == 0 {
		return ""
	}
	if maxEntries > 0 && len(errs) > maxEntries {
		errs = errs[len(errs)-maxEntries:]
	}
	var b strings.Builder
	b.WriteString("PREVIOUS ATTEMPTS FAILED. Fix every error listed below:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "\nAttempt %d failed with %s:\n%s\n", e.Attempt, e.ErrorType, e.Message)
	}
	block := b.String()
	if maxChars > 0 && len(block) > maxChars {
		block = block[:maxChars]
	}
	return block
}

package intent

// DefaultRules is the built-in classification table. Markers come first;
// patterns are ordered most specific to most general, so a CI failure is
// claimed by ci-investigator before the generic debugging rule sees it.
func DefaultRules() []Rule {
	return []Rule{
		mustMarker("/security-audit", "security-auditor"),
		mustMarker("/fix-ci", "ci-investigator"),
		mustMarker("/test", "test-strategist"),
		mustMarker("/lint", "lint-fixer"),
		mustMarker("/format", "formatter"),
		mustMarker("/profile", "performance-profiler"),
		mustMarker("/review", "code-quality-analyzer"),
		mustMarker("/deploy", "k8s-orchestrator"),
		mustMarker("/docs", "documentation-lead"),
		mustMarker("/release", "release-manager"),
		mustMarker("/debug", "debug-investigator"),
		mustMarker("/refactor", "refactoring-planner"),

		// CI and pipelines
		mustPattern(`\b(fix|debug|repair|investigate|diagnose)\b.*\b(ci|pipelines?|workflows?|github actions?|build failures?)\b`, "ci-investigator"),
		mustPattern(`\bgithub actions?\b|\.github/workflows`, "github-actions-fixer"),

		// Tests
		mustPattern(`\bflaky\b|\bintermittent(ly)? fail`, "flaky-test-hunter"),
		mustPattern(`\b(failing|failed|broken)\s+tests?\b|\btest failures?\b`, "test-failure-analyzer"),
		mustPattern(`\bcoverage\b`, "coverage-analyst"),
		mustPattern(`\brun\b.*\btests?\b`, "test-runner"),
		mustPattern(`\btest (plan|strategy)\b|\bwrite (unit |integration )?tests\b`, "test-strategist"),

		// Performance
		mustPattern(`\bbenchmarks?\b`, "benchmark-runner"),
		mustPattern(`\bmemory leaks?\b|\bheap\b|\ballocations?\b`, "memory-profiler"),
		mustPattern(`\b(slow|optimi[sz]e)\b.*\b(query|queries|sql)\b|\bexplain analyze\b|\bn\+1\b`, "query-optimizer"),
		mustPattern(`\b(slow|latency|performance|profil\w*|cpu)\b`, "performance-profiler"),

		// Security
		mustPattern(`\b(secrets?|credentials?|api keys?|leaked tokens?)\b`, "secret-scanner"),
		mustPattern(`\b(cves?|vulnerabilit(y|ies))\b`, "vulnerability-scanner"),
		mustPattern(`\b(dependency|dependencies|go\.mod|package\.json|requirements\.txt)\b.*\b(audit|outdated|upgrade|update)\b`, "dependency-auditor"),
		mustPattern(`\b(security|injection|xss|csrf|authentication|authorization)\b`, "security-auditor"),

		// Infrastructure
		mustPattern(`\bdockerfile\b|\bdocker image\b`, "dockerfile-optimizer"),
		mustPattern(`\bhelm\b`, "helm-chart-reviewer"),
		mustPattern(`\bterraform\b|\.tf\b`, "terraform-reviewer"),
		mustPattern(`\b(kubernetes|k8s|kubectl|deployments?|pods?)\b`, "k8s-orchestrator"),

		// Data and interfaces
		mustPattern(`\bmigrat(e|ion)\b.*\b(schema|database|table|column)\b|\bschema migrations?\b`, "schema-migrator"),
		mustPattern(`\b(api|endpoint|openapi|rest|grpc)\b.*\b(design|contract|spec)\b`, "api-designer"),
		mustPattern(`\b(a11y|accessibility|aria|screen reader)\b`, "accessibility-auditor"),
		mustPattern(`\b(i18n|l10n|translations?|locali[sz]ation)\b`, "i18n-checker"),
		mustPattern(`\b(react|vue|css|frontend|ui components?)\b`, "frontend-reviewer"),

		// Writing
		mustPattern(`\bchangelog\b|\brelease notes\b`, "changelog-writer"),
		mustPattern(`\bcommit messages?\b`, "commit-message-writer"),
		mustPattern(`\bpull requests?\b|\bpr review\b|\breview (this |the )?pr\b`, "pr-reviewer"),
		mustPattern(`\bdocstrings?\b|\bgodoc\b|\bjsdoc\b`, "docstring-writer"),
		mustPattern(`\b(readme|documentation|docs)\b`, "documentation-lead"),
		mustPattern(`\b(release|version bump)\b`, "release-manager"),

		// Static checks
		mustPattern(`\b(type errors?|typecheck|type-check|mypy|tsc)\b`, "type-checker"),
		mustPattern(`\b(lint|linter|eslint|golangci-lint|ruff)\b`, "lint-fixer"),
		mustPattern(`\b(format|formatting|gofmt|prettier)\b`, "formatter"),
		mustPattern(`\blogs?\b.*\b(analy[sz]e|errors?|parse|grep)\b`, "log-analyzer"),

		// General
		mustPattern(`\brefactor\w*\b`, "refactoring-planner"),
		mustPattern(`\b(architecture|design review|module boundaries)\b`, "architecture-reviewer"),
		mustPattern(`\b(code quality|code smells?|complexity|maintainability|review)\b`, "code-quality-analyzer"),
		mustPattern(`\b(orchestrate|coordinate|plan)\b.*\b(project|feature|epic|tasks?)\b`, "project-orchestrator"),
		mustPattern(`\b(tests?|testing)\b`, "test-strategist"),
		mustPattern(`\b(investigate|debug|bugs?|errors?|exceptions?|crash\w*|problems?)\b`, "debug-investigator"),
	}
}

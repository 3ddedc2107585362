package fallback

import (
	"strings"
)

// Category selects a diagnostic routine.
type Category string

const (
	TestAnalysis           Category = "test-analysis"
	CIAnalysis             Category = "ci-analysis"
	QualityAnalysis        Category = "quality-analysis"
	SecurityAudit          Category = "security-audit"
	ContainerOrchestration Category = "container-orchestration"
	ResourceProfiling      Category = "resource-profiling"
	Generic                Category = "generic"
)

// Categories lists every category with a dedicated routine, generic last.
func Categories() []Category {
	return []Category{TestAnalysis, CIAnalysis, QualityAnalysis, SecurityAudit, ContainerOrchestration, ResourceProfiling, Generic}
}

// ParseCategory returns the category named s and whether it is known.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return Generic, false
}

var handlerCategories = map[string]Category{
	"test-strategist":       TestAnalysis,
	"test-runner":           TestAnalysis,
	"test-failure-analyzer": TestAnalysis,
	"flaky-test-hunter":     TestAnalysis,
	"coverage-analyst":      TestAnalysis,
	"benchmark-runner":      TestAnalysis,

	"ci-investigator":      CIAnalysis,
	"github-actions-fixer": CIAnalysis,
	"release-manager":      CIAnalysis,

	"code-quality-analyzer": QualityAnalysis,
	"lint-fixer":            QualityAnalysis,
	"formatter":             QualityAnalysis,
	"type-checker":          QualityAnalysis,
	"refactoring-planner":   QualityAnalysis,
	"architecture-reviewer": QualityAnalysis,
	"docstring-writer":      QualityAnalysis,
	"pr-reviewer":           QualityAnalysis,
	"frontend-reviewer":     QualityAnalysis,

	"security-auditor":      SecurityAudit,
	"secret-scanner":        SecurityAudit,
	"vulnerability-scanner": SecurityAudit,
	"dependency-auditor":    SecurityAudit,

	"k8s-orchestrator":     ContainerOrchestration,
	"dockerfile-optimizer": ContainerOrchestration,
	"helm-chart-reviewer":  ContainerOrchestration,
	"terraform-reviewer":   ContainerOrchestration,

	"performance-profiler": ResourceProfiling,
	"memory-profiler":      ResourceProfiling,
	"query-optimizer":      ResourceProfiling,
	"log-analyzer":         ResourceProfiling,
}

// keywordCategories is consulted in order for names outside the map.
var keywordCategories = []struct {
	keywords []string
	category Category
}{
	{[]string{"security", "secret", "secrets", "vuln", "vulnerability", "audit", "auditor"}, SecurityAudit},
	{[]string{"ci", "pipeline", "workflow", "actions"}, CIAnalysis},
	{[]string{"test", "tests", "testing", "coverage", "flaky"}, TestAnalysis},
	{[]string{"docker", "dockerfile", "k8s", "kubernetes", "helm", "container", "terraform"}, ContainerOrchestration},
	{[]string{"perf", "performance", "profiler", "profiling", "memory", "resource", "benchmark"}, ResourceProfiling},
	{[]string{"lint", "linter", "format", "formatter", "quality", "review", "reviewer", "refactor"}, QualityAnalysis},
}

// CategoryFor maps a handler name (resolved or not) to a category.
// Configured overrides win, then the built-in map, then a keyword match on
// the dash-separated parts of the name. Anything else is Generic.
func (e *Executor) CategoryFor(handler string) Category {
	if c, ok := e.overrides[handler]; ok {
		if _, known := ParseCategory(string(c)); known {
			return c
		}
	}
	return CategoryFor(handler)
}

// CategoryFor applies the built-in map and keyword heuristic.
func CategoryFor(handler string) Category {
	name := strings.ToLower(strings.TrimSpace(handler))
	if c, ok := handlerCategories[name]; ok {
		return c
	}
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' || r == '/' })
	for _, kc := range keywordCategories {
		for _, p := range parts {
			for _, k := range kc.keywords {
				if p == k {
					return kc.category
				}
			}
		}
	}
	return Generic
}

func builtinRoutines() map[Category]Routine {
	return map[Category]Routine{
		Generic: {Category: Generic, Steps: []Step{
			{Name: "artifact", Purpose: "check the artifact exists and report its type", Check: checkArtifact},
			{Name: "workspace", Purpose: "identify the enclosing repository", Check: checkWorkspace},
		}},
		TestAnalysis: {Category: TestAnalysis, Steps: []Step{
			{Name: "artifact", Purpose: "check the artifact exists and report its type", Check: checkArtifact},
			{Name: "test-files", Purpose: "count test files near the artifact", Check: checkTestFiles},
			{Name: "skipped-tests", Purpose: "find skipped or disabled tests", Check: checkSkippedTests},
			{Name: "sleeps", Purpose: "find sleeps in tests (flakiness risk)", Check: checkTestSleeps},
		}},
		CIAnalysis: {Category: CIAnalysis, Steps: []Step{
			{Name: "ci-config", Purpose: "locate CI configuration", Check: checkCIConfig},
			{Name: "workflows", Purpose: "lint GitHub Actions workflows", Check: checkWorkflows},
		}},
		QualityAnalysis: {Category: QualityAnalysis, Steps: []Step{
			{Name: "artifact", Purpose: "check the artifact exists and report its type", Check: checkArtifact},
			{Name: "long-lines", Purpose: "count lines over 120 columns", Check: checkLongLines},
			{Name: "todo-markers", Purpose: "count TODO/FIXME/XXX markers", Check: checkTodoMarkers},
			{Name: "nesting", Purpose: "measure maximum indentation depth", Check: checkNesting},
			{Name: "gofmt", Purpose: "list Go files that need formatting", Check: checkGofmt},
		}},
		SecurityAudit: {Category: SecurityAudit, Steps: []Step{
			{Name: "secrets", Purpose: "scan for hard-coded credentials", Check: checkSecrets},
			{Name: "dangerous-calls", Purpose: "scan for dynamic execution and disabled TLS verification", Check: checkDangerousCalls},
			{Name: "permissions", Purpose: "find world-writable files", Check: checkPermissions},
		}},
		ContainerOrchestration: {Category: ContainerOrchestration, Steps: []Step{
			{Name: "dockerfile", Purpose: "check Dockerfiles for unpinned bases and root user", Check: checkDockerfiles},
			{Name: "manifests", Purpose: "check Kubernetes manifests for privilege and limits", Check: checkManifests},
			{Name: "hadolint", Purpose: "run hadolint when installed", Check: checkHadolint},
		}},
		ResourceProfiling: {Category: ResourceProfiling, Steps: []Step{
			{Name: "artifact-size", Purpose: "measure artifact size", Check: checkArtifactSize},
			{Name: "loadavg", Purpose: "read system load average", Check: checkLoadAvg},
			{Name: "memory", Purpose: "read available memory", Check: checkMemory},
			{Name: "disk", Purpose: "read free disk space", Check: checkDisk},
		}},
	}
}

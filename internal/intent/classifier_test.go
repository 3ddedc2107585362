package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/registry"
)

func TestClassifyScenarios(t *testing.T) {
	c := Default()
	tests := []struct {
		text string
		want string
	}{
		{"fix ci pipeline workflow", "ci-investigator"},
		{"Fix CI Pipeline Workflow", "ci-investigator"},
		{"please /security-audit the auth module", "security-auditor"},
		{"/fix-ci", "ci-investigator"},
		{"the tests are flaky on main", "flaky-test-hunter"},
		{"two failing tests in pkg/api", "test-failure-analyzer"},
		{"run the tests for this package", "test-runner"},
		{"slow query on the orders table", "query-optimizer"},
		{"service latency regressed", "performance-profiler"},
		{"check for leaked api keys", "secret-scanner"},
		{"is there an XSS risk here", "security-auditor"},
		{"review the Dockerfile", "dockerfile-optimizer"},
		{"scale the k8s deployment", "k8s-orchestrator"},
		{"write a changelog entry", "changelog-writer"},
		{"refactoring the parser", "refactoring-planner"},
		{"investigate this crash", "debug-investigator"},
		{"hello there", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestMarkerIsWholeToken(t *testing.T) {
	c := Default()
	assert.Equal(t, "test-strategist", c.Classify("/test now"))
	assert.Equal(t, "test-strategist", c.Classify("run /test."))
	assert.Equal(t, "", c.Classify("/testx"), "marker must not match inside a longer token")
}

func TestMarkersShortCircuitPatterns(t *testing.T) {
	// "fix ci" would match the CI pattern, but the /lint marker runs first.
	assert.Equal(t, "lint-fixer", Default().Classify("fix ci lint errors /lint"))
}

func TestRuleOrderPrecedence(t *testing.T) {
	c := New([]Rule{
		mustPattern(`\bbug\b`, "debug-investigator"),
		mustPattern(`\bbug\b`, "other"),
		mustMarker("/x", "marker-target"),
	})
	assert.Equal(t, "debug-investigator", c.Classify("a bug"))
	assert.Equal(t, "marker-target", c.Classify("a bug /x"))
	assert.Equal(t, Marker, c.Rules()[0].Kind, "markers are evaluated first")
}

func TestClassifierDeterministic(t *testing.T) {
	c := Default()
	text := "investigate failing tests in the ci pipeline"
	first := c.Classify(text)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, c.Classify(text))
	}
}

func TestClassifyTaskPrefersDescription(t *testing.T) {
	c := Default()
	assert.Equal(t, "formatter", c.ClassifyTask("gofmt the package", "investigate the crash"))
	assert.Equal(t, "debug-investigator", c.ClassifyTask("do the thing", "investigate the crash"))
	assert.Equal(t, "", c.ClassifyTask("", ""))
}

func TestExplainReturnsRule(t *testing.T) {
	h, r := Default().Explain("fix ci pipeline workflow")
	require.NotNil(t, r)
	assert.Equal(t, "ci-investigator", h)
	assert.Equal(t, Pattern, r.Kind)

	_, r = Default().Explain("nothing relevant")
	assert.Nil(t, r)
}

func TestDefaultRuleOrder(t *testing.T) {
	var got []string
	for _, r := range DefaultRules() {
		got = append(got, r.Handler)
	}
	want := []string{
		"security-auditor", "ci-investigator", "test-strategist", "lint-fixer", "formatter",
		"performance-profiler", "code-quality-analyzer", "k8s-orchestrator", "documentation-lead",
		"release-manager", "debug-investigator", "refactoring-planner",
		"ci-investigator", "github-actions-fixer",
		"flaky-test-hunter", "test-failure-analyzer", "coverage-analyst", "test-runner", "test-strategist",
		"benchmark-runner", "memory-profiler", "query-optimizer", "performance-profiler",
		"secret-scanner", "vulnerability-scanner", "dependency-auditor", "security-auditor",
		"dockerfile-optimizer", "helm-chart-reviewer", "terraform-reviewer", "k8s-orchestrator",
		"schema-migrator", "api-designer", "accessibility-auditor", "i18n-checker", "frontend-reviewer",
		"changelog-writer", "commit-message-writer", "pr-reviewer", "docstring-writer",
		"documentation-lead", "release-manager",
		"type-checker", "lint-fixer", "formatter", "log-analyzer",
		"refactoring-planner", "architecture-reviewer", "code-quality-analyzer",
		"project-orchestrator", "test-strategist", "debug-investigator",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("default rule order changed (-want +got):\n%s", diff)
	}
}

func TestDefaultRulesTargetKnownHandlers(t *testing.T) {
	known := map[string]model.Tier{}
	for _, h := range registry.Builtin() {
		known[h.Name] = h.Tier
	}
	covered := map[string]bool{}
	for _, r := range DefaultRules() {
		_, ok := known[r.Handler]
		assert.True(t, ok, "rule %s targets unknown handler", r)
		covered[r.Handler] = true
	}
	assert.Len(t, covered, len(known), "every builtin handler is reachable by some rule")
}

func TestFromConfigPrependsRules(t *testing.T) {
	c, err := FromConfig(config.IntentConfig{Rules: []config.RuleSpec{
		{Kind: "pattern", Match: `\bpipeline\b`, Handler: "custom-ci"},
		{Kind: "marker", Match: "/ship", Handler: "release-manager"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "custom-ci", c.Classify("fix ci pipeline workflow"))
	assert.Equal(t, "release-manager", c.Classify("/ship it"))
	assert.Equal(t, "formatter", c.Classify("gofmt everything"))

	only, err := FromConfig(config.IntentConfig{DisableDefaults: true, Rules: []config.RuleSpec{
		{Kind: "marker", Match: "/ship", Handler: "release-manager"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "", only.Classify("gofmt everything"))
}

func TestCompileRejectsBadRules(t *testing.T) {
	_, err := Compile([]config.RuleSpec{{Kind: "pattern", Match: "(", Handler: "x"}})
	assert.Error(t, err)
	_, err = Compile([]config.RuleSpec{{Kind: "glob", Match: "x", Handler: "x"}})
	assert.Error(t, err)
	_, err = Compile([]config.RuleSpec{{Kind: "marker", Match: "  ", Handler: "x"}})
	assert.Error(t, err)
}

package guardianconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadMergesUserOrgRepoInOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "veil"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "veil", "veil.toml"), []byte(`
include = ["user-include/**"]
threads = 2
mask_mode = "partial"
`), 0o644))

	orgPath := filepath.Join(t.TempDir(), "org.toml")
	require.NoError(t, os.WriteFile(orgPath, []byte(`
include = ["org-include/**"]
threads = 4
`), 0o644))
	t.Setenv("VEIL_ORG_CONFIG", orgPath)

	repoDir := t.TempDir()
	chdir(t, repoDir)
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "veil.toml"), []byte(`
include = ["repo-include/**"]
`), 0o644))

	eff, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"user-include/**", "org-include/**", "repo-include/**"}, eff.Include)
	require.Equal(t, 4, eff.Threads)          // org overrides user
	require.Equal(t, "partial", eff.MaskMode) // only user set it
}

func TestLoadStrictExplicitOrgConfigMissingIsFatal(t *testing.T) {
	t.Setenv("VEIL_ORG_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.toml"))
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadSoftMissingLayersAreFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VEIL_ORG_CONFIG", "")
	t.Setenv("VEIL_ORG_RULES", "")
	chdir(t, t.TempDir())

	eff, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "redact", eff.MaskMode)
}

func TestValidateRejectsMaskModePlain(t *testing.T) {
	plain := "plain"
	err := Validate(File{MaskMode: &plain})
	require.Error(t, err)
}

func TestValidateRejectsEmptyPattern(t *testing.T) {
	err := Validate(File{Rules: map[string]RuleOverride{"x": {Pattern: ""}}})
	require.Error(t, err)
}

func TestValidateRejectsBadRegex(t *testing.T) {
	err := Validate(File{Rules: map[string]RuleOverride{"x": {Pattern: "("}}})
	require.Error(t, err)
}

func TestValidateRejectsUnknownSeverity(t *testing.T) {
	err := Validate(File{Rules: map[string]RuleOverride{"x": {Pattern: "a", Severity: "extreme"}}})
	require.Error(t, err)
}

func TestRuleMapInsertByIdLaterWins(t *testing.T) {
	userFile := File{Rules: map[string]RuleOverride{"r1": {Pattern: "aaa", Severity: "low"}}}
	repoFile := File{Rules: map[string]RuleOverride{"r1": {Pattern: "bbb", Severity: "high"}}}

	eff := Effective{Rules: map[string]RuleOverride{}}
	merge(&eff, &userFile)
	merge(&eff, &repoFile)

	require.Equal(t, "bbb", eff.Rules["r1"].Pattern)
	require.Equal(t, "high", eff.Rules["r1"].Severity)
}

package baseline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varalys/veil/internal/types"
)

func finding(rule, path string, line int, snippet string) types.Finding {
	return types.Finding{RuleID: rule, Path: path, Line: line, MaskedSnippet: snippet, Severity: types.SevHigh}
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	base := finding("creds.aws.access_key_id", "a.txt", 3, "aws_key = <REDACTED>")
	require.Equal(t, Fingerprint(base), Fingerprint(base))
	require.Regexp(t, `^sha256:[0-9a-f]{64}$`, Fingerprint(base))

	for _, mutated := range []types.Finding{
		finding("creds.gcp.api_key", "a.txt", 3, "aws_key = <REDACTED>"),
		finding("creds.aws.access_key_id", "b.txt", 3, "aws_key = <REDACTED>"),
		finding("creds.aws.access_key_id", "a.txt", 4, "aws_key = <REDACTED>"),
		finding("creds.aws.access_key_id", "a.txt", 3, "aws_key = ****"),
	} {
		require.NotEqual(t, Fingerprint(base), Fingerprint(mutated))
	}
}

func TestPartition_NilSnapshotIsAllNew(t *testing.T) {
	findings := []types.Finding{finding("r", "a.txt", 1, "x")}
	suppressed, fresh := Partition(findings, nil)
	require.Empty(t, suppressed)
	require.Equal(t, findings, fresh)
}

func TestPartition_Idempotence(t *testing.T) {
	findings := []types.Finding{
		finding("r1", "a.txt", 1, "x"),
		finding("r2", "b.txt", 9, "y"),
	}
	snap := Build(findings, "test", time.Now())
	suppressed, fresh := Partition(findings, &snap)
	require.Empty(t, fresh)
	require.Equal(t, findings, suppressed)
}

func TestPartition_SplitsNewFromKnown(t *testing.T) {
	known := finding("r1", "a.txt", 1, "x")
	snap := Build([]types.Finding{known}, "test", time.Now())

	added := finding("r1", "b.txt", 1, "x")
	suppressed, fresh := Partition([]types.Finding{known, added}, &snap)
	require.Len(t, suppressed, 1)
	require.Len(t, fresh, 1)
	require.Equal(t, "b.txt", fresh[0].Path)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	snap := Build([]types.Finding{finding("r", "a.txt", 1, "x")}, "0.1.0", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, Save(path, snap))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, types.BaselineSchema, loaded.Schema)
	require.Len(t, loaded.Entries, 1)
	require.Equal(t, snap.Entries[0].Fingerprint, loaded.Entries[0].Fingerprint)
}

func TestLoad_RejectsUnknownSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	snap := Build(nil, "0.1.0", time.Now())
	snap.Schema = "veil.baseline.v2"
	require.NoError(t, Save(path, snap))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported schema")
}

func TestClassify(t *testing.T) {
	some := []types.Finding{finding("r", "a.txt", 1, "x")}

	require.Equal(t, CaseNoFindings, Classify(false, nil, nil))
	require.Equal(t, CaseNoFindings, Classify(true, nil, nil))
	require.Equal(t, CaseAllSuppress, Classify(true, some, nil))
	require.Equal(t, CaseSomeNew, Classify(true, some, some))
	require.Equal(t, CaseSomeNew, Classify(false, nil, some))
}

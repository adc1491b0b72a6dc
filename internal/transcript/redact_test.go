package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactDefaults(t *testing.T) {
	t.Parallel()

	r, err := NewRedactor()
	require.NoError(t, err)

	in := "Patient SSN 123-45-6789, callback (555) 123-4567 or 555-987-6543, " +
		"email jane.doe@example.com, MRN: 12345678."
	out := r.Redact(in)

	assert.NotContains(t, out, "123-45-6789")
	assert.NotContains(t, out, "(555) 123-4567")
	assert.NotContains(t, out, "555-987-6543")
	assert.NotContains(t, out, "jane.doe@example.com")
	assert.NotContains(t, out, "12345678")

	assert.Contains(t, out, "[REDACTED-SSN]")
	assert.Contains(t, out, "[REDACTED-PHONE]")
	assert.Contains(t, out, "[REDACTED-EMAIL]")
	assert.Contains(t, out, "[REDACTED-MRN]")
}

func TestRedactLeavesCleanTextAlone(t *testing.T) {
	t.Parallel()

	r, err := NewRedactor()
	require.NoError(t, err)

	in := "Patient reports knee pain rated 6 of 10 since 2024."
	assert.Equal(t, in, r.Redact(in))
}

func TestRedactCustomRules(t *testing.T) {
	t.Parallel()

	rulesYAML := `
rules:
  - name: insurance
    pattern: '\bINS-\d{6}\b'
    placeholder: "[POLICY]"
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0644))

	r, err := NewRedactorFromFile(path)
	require.NoError(t, err)

	out := r.Redact("Policy INS-443210, SSN 123-45-6789.")

	// Custom rules run in addition to the built-ins.
	assert.Contains(t, out, "[POLICY]")
	assert.Contains(t, out, "[REDACTED-SSN]")
	assert.NotContains(t, out, "INS-443210")
}

func TestRedactorFromFileBadPattern(t *testing.T) {
	t.Parallel()

	rulesYAML := `
rules:
  - name: broken
    pattern: '(['
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0644))

	_, err := NewRedactorFromFile(path)
	assert.Error(t, err)
}

func TestRedactorFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewRedactorFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

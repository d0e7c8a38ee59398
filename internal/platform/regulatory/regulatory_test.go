package regulatory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAllowedIsDenylistSemantics(t *testing.T) {
	table := NewTable(Document{
		Prohibited: []Rule{
			{FromJurisdiction: "US", ToJurisdiction: "KP", SegmentClass: "bank_rail"},
		},
	})

	assert.False(t, table.Allowed("US", "KP", "bank_rail"))
	assert.True(t, table.Allowed("US", "KP", "crypto"), "a different segment class on the same corridor is not covered by the rule")
	assert.True(t, table.Allowed("US", "GB", "bank_rail"), "an unlisted corridor is allowed by default")
}

func TestEmptyTableAllowsEverything(t *testing.T) {
	table := Empty()
	assert.True(t, table.Allowed("US", "KP", "bank_rail"))
}

func TestNilTableAllowsEverything(t *testing.T) {
	var table *Table
	assert.True(t, table.Allowed("US", "KP", "bank_rail"), "a nil table (no regulatory document configured) must not block routing")
}

func TestLoadParsesDocumentFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regulatory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"prohibited": [{"from_jurisdiction": "US", "to_jurisdiction": "IR", "segment_class": "bank_rail"}],
		"constraints": {"providers": {"wise": {"max_notional": 50000}}}
	}`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.False(t, table.Allowed("US", "IR", "bank_rail"))

	val, err := table.Query("$.providers.wise.max_notional")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, val)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestQueryWithoutConstraintsDocumentReturnsError(t *testing.T) {
	table := Empty()
	_, err := table.Query("$.anything")
	require.Error(t, err)
}

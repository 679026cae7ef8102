package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{"left-pad": {"version": "1.3.0"}, "@scope/pkg": {"version": "2.0.1"}}`))
	require.NoError(t, err)

	require.Len(t, m, 2)
	assert.Equal(t, "1.3.0", m["left-pad"].Version)
	assert.Equal(t, "2.0.1", m["@scope/pkg"].Version)
}

func TestParseRejectsUnpinnedEntries(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing version", data: `{"left-pad": {}}`},
		{name: "empty version", data: `{"left-pad": {"version": ""}}`},
		{name: "empty package name", data: `{"": {"version": "1.0.0"}}`},
		{name: "version not a string", data: `{"left-pad": {"version": 1}}`},
		{name: "not json", data: `left-pad@1.3.0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestNamesAreSorted(t *testing.T) {
	m := Manifest{
		"zlib":     {Version: "1.0.0"},
		"a-pkg":    {Version: "1.0.0"},
		"left-pad": {Version: "1.3.0"},
	}
	assert.Equal(t, []string{"a-pkg", "left-pad", "zlib"}, m.Names())
}

func TestParseLockfileV2(t *testing.T) {
	data := []byte(`{
		"lockfileVersion": 2,
		"packages": {
			"": {"name": "myapp", "version": "0.0.1"},
			"node_modules/left-pad": {"version": "1.3.0"},
			"node_modules/@scope/pkg": {"version": "2.0.1"},
			"node_modules/left-pad/node_modules/nested": {"version": "0.5.0"},
			"node_modules/devtool": {"version": "9.9.9", "dev": true},
			"node_modules/linked": {"version": "1.0.0", "link": true},
			"node_modules/aliased": {"version": "npm:other@1.0.0"}
		}
	}`)

	m, err := ParseLockfile(data)
	require.NoError(t, err)

	assert.Equal(t, Manifest{
		"left-pad":   {Version: "1.3.0"},
		"@scope/pkg": {Version: "2.0.1"},
		"nested":     {Version: "0.5.0"},
	}, m)
}

func TestParseLockfileV1(t *testing.T) {
	data := []byte(`{
		"lockfileVersion": 1,
		"dependencies": {
			"left-pad": {"version": "1.3.0"},
			"devtool": {"version": "9.9.9", "dev": true},
			"local": {"version": "file:../local"}
		}
	}`)

	m, err := ParseLockfile(data)
	require.NoError(t, err)

	assert.Equal(t, Manifest{"left-pad": {Version: "1.3.0"}}, m)
}

func TestParseLockfileBadJSON(t *testing.T) {
	_, err := ParseLockfile([]byte(`{`))
	assert.Error(t, err)
}

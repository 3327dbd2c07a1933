package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	brands, models, colors, districts, towns := c.Counts()
	assert.Equal(t, 10, brands)
	assert.Greater(t, models, brands)
	assert.Greater(t, colors, models)
	assert.Greater(t, districts, 0)
	assert.Greater(t, towns, districts)

	var colombo *District
	for i := range c.Districts {
		if c.Districts[i].Name == "Colombo" {
			colombo = &c.Districts[i]
		}
	}
	require.NotNil(t, colombo)
	assert.Contains(t, colombo.Towns, "Nugegoda")
}

func TestParse(t *testing.T) {
	data := []byte(`
brands:
  - name: Apple
    models:
      - name: iPhone 15
        colors:
          - { name: Black, hex: "#000000" }
districts:
  - name: Colombo
    towns: [Nugegoda]
`)
	c, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, c.Brands, 1)
	assert.Equal(t, "iPhone 15", c.Brands[0].Models[0].Name)
	assert.Equal(t, "#000000", c.Brands[0].Models[0].Colors[0].HexCode)
	assert.Equal(t, []string{"Nugegoda"}, c.Districts[0].Towns)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "   \n"},
		{"not yaml", "brands: [unterminated"},
		{"blank brand", "brands:\n  - name: \"\"\n"},
		{"duplicate brand", "brands:\n  - name: Apple\n  - name: apple\n"},
		{"duplicate model", "brands:\n  - name: Apple\n    models:\n      - name: X\n      - name: X\n"},
		{"duplicate town", "districts:\n  - name: Kandy\n    towns: [Peradeniya, Peradeniya]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Brands)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("districts:\n  - name: Galle\n    towns: [Hikkaduwa]\n"), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, c.Brands)
	assert.Equal(t, "Galle", c.Districts[0].Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRoundTrip(t *testing.T) {
	original := Dataset{
		Headers: []string{"name", "composition", "mrp"},
		Rows: []map[string]string{
			{"name": "Amoxicillin 250", "composition": "Amoxicillin Trihydrate IP", "mrp": "80"},
			{"name": "Combo, Pack", "composition": "says \"take with food\"", "mrp": "120.50"},
			{"name": "Multi\nline notes", "composition": "", "mrp": "0"},
		},
	}

	payload, err := NewCSVExporter().Render(original)
	require.NoError(t, err)

	parsed, err := Parse(bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, original.Headers, parsed.Headers)
	require.Len(t, parsed.Rows, len(original.Rows))
	for i, row := range original.Rows {
		assert.Equal(t, row, parsed.Rows[i])
	}
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVParsePadsShortRecords(t *testing.T) {
	parsed, err := Parse(strings.NewReader("name,category,mrp\nParacetamol\n"))
	require.NoError(t, err)

	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, "Paracetamol", parsed.Rows[0]["name"])
	assert.Equal(t, "", parsed.Rows[0]["category"])
	assert.Equal(t, "", parsed.Rows[0]["mrp"])
}

func TestCSVParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)
}

package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	data := Dataset{Title: "Substitutes 2024-01-01", Headers: []string{"Period", "Class", "Substitute"}}
	data.Append("1", "10A", "Bob Brown")
	data.Append("2", "8B")
	data.Notes = []string{"No substitute available for 9C period 3"}
	return data
}

func TestDatasetAppendPadsRows(t *testing.T) {
	data := sampleDataset()
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"2", "8B", ""}, data.Rows[1])
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	expected := "Period,Class,Substitute\n1,10A,Bob Brown\n2,8B,\nNote,No substitute available for 9C period 3\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleDataset())
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pageWidth, total, 0.001)
	assert.Greater(t, widths[2], widths[0])
}

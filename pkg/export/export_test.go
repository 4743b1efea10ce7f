package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Attendance Report",
		Notes:   []string{"Date: 2024-03-05"},
		Headers: []string{"Teacher", "Status"},
		Rows: []map[string]string{
			{"Teacher": "Ana", "Status": "On Time"},
			{"Teacher": "Budi, S.Pd", "Status": "Late"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Teacher,Status\nAna,On Time\n\"Budi, S.Pd\",Late\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	require.Error(t, err)
	_, err = Render(FormatPDF, Dataset{})
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Onboarding progress",
		Columns: []Column{
			{Key: "employee", Title: "Employee"},
			{Key: "percentage", Title: "Progress %", Width: 30},
		},
		Rows: []map[string]string{
			{"employee": "emp-1", "percentage": "40"},
			{"employee": "emp-2, jr", "percentage": "100"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Employee,Progress %\nemp-1,40\n\"emp-2, jr\",100\n", string(out))
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Columns: []Column{{Key: "doc", Title: "Document"}},
		Rows: []map[string]string{
			{"doc": "=HYPERLINK(\"http://x\")"},
			{"doc": "@SUM(A1)"},
			{"doc": "-"},
			{"doc": "contract.pdf"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Document\n\"'=HYPERLINK(\"\"http://x\"\")\"\n'@SUM(A1)\n-\ncontract.pdf\n", string(out))
}

func TestRenderRequiresColumns(t *testing.T) {
	for _, r := range []Renderer{NewCSVExporter(), NewPDFExporter(), NewXLSXExporter()} {
		_, err := r.Render(Dataset{})
		assert.Error(t, err, r.Extension())
	}
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Employee", "Progress %"}, rows[0])
	assert.Equal(t, []string{"emp-2, jr", "100"}, rows[2])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("docx")
	assert.Error(t, err)

	r, err := NewRegistry().Renderer(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())
}

func TestColumnWidthsShareRemainder(t *testing.T) {
	widths := columnWidths([]Column{{Key: "a", Width: 77}, {Key: "b"}, {Key: "c"}})
	assert.Equal(t, []float64{77, 100, 100}, widths)
}

package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipelineDataset() Dataset {
	return Dataset{
		Headers: []string{"Candidate", "Source", "Status"},
		Rows: [][]string{
			{"Jordan Lee", "platform", "vetting"},
			{"Sam Ortiz", "public_link", "identified"},
		},
	}
}

func TestCSVExporterRendersOrderedRows(t *testing.T) {
	rendered, err := NewCSVExporter().Render(pipelineDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(rendered)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"Candidate", "Source", "Status"}, records[0])
	require.Equal(t, []string{"Jordan Lee", "platform", "vetting"}, records[1])
	require.Equal(t, []string{"Sam Ortiz", "public_link", "identified"}, records[2])
}

func TestCSVExporterRejectsRaggedRow(t *testing.T) {
	data := pipelineDataset()
	data.Rows = append(data.Rows, []string{"too", "short"})

	_, err := NewCSVExporter().Render(data)
	require.ErrorContains(t, err, "2 cells, want 3")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.ErrorContains(t, err, "at least one header")
}

func TestPDFExporterRendersDocument(t *testing.T) {
	rendered, err := NewPDFExporter().Render(pipelineDataset(), "Candidate Pipeline: FedRAMP Advisory", []string{"Candidates: 2"})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(rendered, []byte("%PDF-")))
}

func TestPDFExporterRejectsRaggedRow(t *testing.T) {
	data := pipelineDataset()
	data.Rows = append(data.Rows, []string{"too", "short"})

	_, err := NewPDFExporter().Render(data, "", nil)
	require.ErrorContains(t, err, "2 cells, want 3")
}

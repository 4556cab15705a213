package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := NewTable("Path", "Type", "Access")
	assert.Equal(t, []string{"Path", "Type", "Access"}, table.Headers())
	assert.Zero(t, table.Len())

	table.AddRow("CTT.SimpleTypes.In.Word", "ui2", "read")
	table.AddRow("Commands.RequestShutdown")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CTT.SimpleTypes.In.Word", "ui2", "read"}, rows[0])
	assert.Equal(t, []string{"Commands.RequestShutdown", "", ""}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTable("Id", "Name")
	table.AddRow("0x600", "PlantNorth")
	table.AddRow("0x602", "PlantSouth")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "0x600")
	assert.Contains(t, out, "PlantSouth")
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{
		{"State", "running"},
		{"Items", "7203"},
	}))

	out := buf.String()
	assert.Contains(t, out, "State")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "7203")
}

package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() []Slot {
	return []Slot{
		{ID: "P1", Start: "07:00", End: "07:45"},
		{ID: "P2", Start: "07:45", End: "08:30"},
	}
}

func TestWriteBlocksRendersPerClassBlocks(t *testing.T) {
	cells := []Cell{
		{Class: "7B", Day: "Mon", SlotID: "P1", Subject: "English", Teacher: "Budi"},
		{Class: "7A", Day: "Mon", SlotID: "P1", Subject: "Mathematics", Teacher: "Sari"},
		{Class: "7A", Day: "Mon", SlotID: "P2", Subject: "English", Teacher: "Budi"},
	}

	var buf strings.Builder
	require.NoError(t, WriteBlocks(&buf, cells, []string{"7B", "7A"}, []string{"Mon"}, sampleTemplate()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7, "two blocks of header plus two rows, separated by a blank record")

	assert.Equal(t, "Class,Day,PeriodStart,PeriodEnd,Subject,Teacher", lines[0])
	// Classes render sorted regardless of input order.
	assert.Equal(t, "7A,Mon,07:00,07:45,Mathematics,Sari", lines[1])
	assert.Equal(t, "7A,Mon,07:45,08:30,English,Budi", lines[2])
	assert.Equal(t, "", lines[3], "blank record between blocks")
	assert.Equal(t, "Class,Day,PeriodStart,PeriodEnd,Subject,Teacher", lines[4])
	assert.Equal(t, "7B,Mon,07:00,07:45,English,Budi", lines[5])
}

func TestWriteBlocksLeavesUnplacedCellsEmpty(t *testing.T) {
	cells := []Cell{
		{Class: "7A", Day: "Mon", SlotID: "P1", Subject: "Mathematics", Teacher: "Sari"},
	}

	var buf strings.Builder
	require.NoError(t, WriteBlocks(&buf, cells, []string{"7A"}, []string{"Mon"}, sampleTemplate()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "7A,Mon,07:45,08:30,,", lines[2])
}

func TestWriteBlocksEmptyInput(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteBlocks(&buf, nil, nil, nil, nil))
	assert.Empty(t, buf.String())
}

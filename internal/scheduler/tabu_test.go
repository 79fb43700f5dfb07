package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func TestTabuListEvictsOldest(t *testing.T) {
	tabu := newTabuList(2)

	k1 := singleMove("replace", models.CellKey{Class: "7A", Day: "Mon", SlotID: "P1"})
	k2 := singleMove("replace", models.CellKey{Class: "7A", Day: "Mon", SlotID: "P2"})
	k3 := singleMove("replace", models.CellKey{Class: "7A", Day: "Tue", SlotID: "P1"})

	tabu.Add(k1)
	tabu.Add(k2)
	assert.True(t, tabu.Contains(k1))
	assert.True(t, tabu.Contains(k2))

	tabu.Add(k3)
	assert.False(t, tabu.Contains(k1), "oldest entry evicted at capacity")
	assert.True(t, tabu.Contains(k2))
	assert.True(t, tabu.Contains(k3))
	assert.Equal(t, 2, tabu.Len())
}

func TestTabuListDuplicateAdd(t *testing.T) {
	tabu := newTabuList(4)
	k := singleMove("chain", models.CellKey{Class: "7A", Day: "Mon", SlotID: "P1"})
	tabu.Add(k)
	tabu.Add(k)
	assert.Equal(t, 1, tabu.Len())
}

func TestSwapMoveIsDirectionless(t *testing.T) {
	a := models.CellKey{Class: "7A", Day: "Mon", SlotID: "P1"}
	b := models.CellKey{Class: "7A", Day: "Tue", SlotID: "P2"}

	assert.Equal(t, swapMove("swap", a, b), swapMove("swap", b, a))
}

func TestTabuListRespectsMinimumSize(t *testing.T) {
	tabu := newTabuList(0)
	for i := 0; i < 3; i++ {
		tabu.Add(singleMove("swap", models.CellKey{Class: fmt.Sprintf("7%c", 'A'+i), Day: "Mon", SlotID: "P1"}))
	}
	assert.Equal(t, 1, tabu.Len())
}

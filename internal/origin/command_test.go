package origin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommand(t *testing.T) {
	t.Run("envelope fields", func(t *testing.T) {
		envelope := buildCommand(cmdGotoRaDec, destMount, 2001, map[string]any{
			"Ra":  1.5,
			"Dec": 0.25,
		})

		assert.Equal(t, "GotoRaDec", envelope["Command"])
		assert.Equal(t, "Mount", envelope["Destination"])
		assert.Equal(t, 2001, envelope["SequenceID"])
		assert.Equal(t, "AlpacaServer", envelope["Source"])
		assert.Equal(t, "Command", envelope["Type"])
		assert.Equal(t, 1.5, envelope["Ra"])
		assert.Equal(t, 0.25, envelope["Dec"])
	})

	t.Run("nil params", func(t *testing.T) {
		envelope := buildCommand(cmdPark, destMount, 2002, nil)
		assert.Len(t, envelope, 5)
	})

	t.Run("round trips through json", func(t *testing.T) {
		data, err := encodeCommand(buildCommand(cmdGetStatus, destEnvironment, 2003, nil))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "GetStatus", decoded["Command"])
		assert.Equal(t, float64(2003), decoded["SequenceID"])
	})
}

func TestPendingTable(t *testing.T) {
	table := newPendingTable()

	table.record(2000, cmdGotoRaDec)
	table.record(2001, cmdGetStatus)
	assert.Equal(t, 2, table.size())

	command, ok := table.resolve(2000)
	require.True(t, ok)
	assert.Equal(t, cmdGotoRaDec, command)

	// Resolving prunes, so a second lookup misses.
	_, ok = table.resolve(2000)
	assert.False(t, ok)

	_, ok = table.resolve(9999)
	assert.False(t, ok)

	table.reset()
	assert.Equal(t, 0, table.size())
}

func TestPendingTableEvictsOldest(t *testing.T) {
	table := newPendingTable()

	// Unanswered commands pile up on a long session; the table must stay
	// bounded by dropping its oldest entries.
	for i := 0; i < maxPendingCommands+10; i++ {
		table.record(2000+i, cmdGetStatus)
	}
	assert.Equal(t, maxPendingCommands, table.size())

	_, ok := table.resolve(2000)
	assert.False(t, ok, "oldest entry was evicted")
	_, ok = table.resolve(2009)
	assert.False(t, ok, "all ten oldest entries were evicted")

	command, ok := table.resolve(2000 + maxPendingCommands + 9)
	require.True(t, ok, "newest entry survives")
	assert.Equal(t, cmdGetStatus, command)
}

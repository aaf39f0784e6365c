package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

func TestMergeOverwritesNonIgnoredColumns(t *testing.T) {
	snap := &models.RowSnapshot{Rows: map[string][]interface{}{"id1": {"a", "b"}}}
	// Column 0 is overwritten; column 1 is ignored; the identifier sits in column 2.
	rows := [][]interface{}{{"new0", "new1", "id1"}}

	out, matched := Merge(rows, 2, []int{1}, snap)
	assert.Equal(t, 1, matched)
	assert.Equal(t, []interface{}{"a", "new1", "id1"}, out[0])
	assert.Equal(t, "new0", rows[0][0], "input rows must not be modified")
}

func TestCaptureDuplicateLastWins(t *testing.T) {
	header := []string{"ID", "Status"}
	rows := [][]interface{}{
		{"id1", "first"},
		{"id2", "other"},
		{"id1", "second"},
	}

	snap := Capture(header, rows, 0)
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []interface{}{"id1", "second"}, snap.Rows["id1"])
}

func TestCaptureSkipsEmptyIdentifiers(t *testing.T) {
	snap := Capture([]string{"ID", "Status"}, [][]interface{}{
		{nil, "x"},
		{"", "y"},
		{int64(7), "z"},
		{"short"},
	}, 0)

	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, []interface{}{int64(7), "z"}, snap.Rows["7"])
	assert.Equal(t, []interface{}{"short", nil}, snap.Rows["short"])
}

func TestMergeNullIdentifierRowUntouched(t *testing.T) {
	snap := &models.RowSnapshot{Rows: map[string][]interface{}{"": {"x", "y"}, "id1": {"id1", "z"}}}
	rows := [][]interface{}{{nil, "fresh"}, {"", "fresh"}}

	out, matched := Merge(rows, 0, nil, snap)
	assert.Zero(t, matched)
	assert.Equal(t, rows, out)
}

func TestMergeUnmatchedRowUntouched(t *testing.T) {
	snap := &models.RowSnapshot{Rows: map[string][]interface{}{"old": {"old", "done"}}}
	rows := [][]interface{}{{"new", "todo"}}

	out, matched := Merge(rows, 0, nil, snap)
	assert.Zero(t, matched)
	assert.Equal(t, "todo", out[0][1])
}

func TestMergeIdempotent(t *testing.T) {
	header := []string{"ID", "Label", "Status", "Comment"}
	old := [][]interface{}{
		{"a", "Alpha", "done", "checked by ops"},
		{"b", "Beta", nil, "pending"},
	}
	fresh := [][]interface{}{
		{"a", "Alpha v2", "todo", nil},
		{"c", "Gamma", "todo", nil},
		{"b", "Beta", "todo", nil},
	}
	ignore := []int{1}

	snap := Capture(header, old, 0)
	once, _ := Merge(fresh, 0, ignore, snap)
	twice, _ := Merge(once, 0, ignore, snap)
	assert.Equal(t, once, twice)

	assert.Equal(t, []interface{}{"a", "Alpha v2", "done", "checked by ops"}, once[0])
	assert.Equal(t, []interface{}{"c", "Gamma", "todo", nil}, once[1])
	assert.Equal(t, []interface{}{"b", "Beta", nil, "pending"}, once[2])
}

func TestProject(t *testing.T) {
	snap := Capture(
		[]string{"ID", "Level 1", "Status", "Comment"},
		[][]interface{}{{"a", "Alpha", "done", "note"}},
		0,
	)

	projected, unknown := Project(snap, []string{"ID", "Level 1", "Level 2", "Comment", "Owner"})
	assert.Equal(t, []int{2, 4}, unknown)
	assert.Equal(t, []interface{}{"a", "Alpha", nil, "note", nil}, projected.Rows["a"])

	fresh := [][]interface{}{{"a", "Alpha", "Sub", nil, "ops"}}
	out, matched := Merge(fresh, 0, append([]int{1, 2}, unknown...), projected)
	assert.Equal(t, 1, matched)
	assert.Equal(t, []interface{}{"a", "Alpha", "Sub", "note", "ops"}, out[0])
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "", Identifier(nil))
	assert.Equal(t, "x", Identifier("x"))
	assert.Equal(t, "12", Identifier(int64(12)))
	assert.Equal(t, "1.5", Identifier(1.5))
}

package layout

import (
	"strings"
	"testing"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

func sampleTree() *models.TreeNode {
	return &models.TreeNode{
		ID:   "s1",
		Text: "Build",
		Children: []*models.TreeNode{
			{ID: "a", Text: "Compile", Image: "compile.png", Children: []*models.TreeNode{
				{ID: "a1", Text: "Linux", Values: map[string]interface{}{"Status": "todo"}},
				{ID: "a2", Text: "Windows"},
			}},
			{ID: "b", Text: "Package", Values: map[string]interface{}{"Status": "=IF(1>0,\"ok\",\"no\")"}},
		},
	}
}

func TestFlatten(t *testing.T) {
	g, err := Flatten(sampleTree(), DefaultOptions([]string{"Status", "Comment"}))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	expectedHeader := []string{"ID", "Level 1", "Level 2", "Status", "Comment"}
	if strings.Join(g.Header, ",") != strings.Join(expectedHeader, ",") {
		t.Fatalf("Expected header %v, got %v", expectedHeader, g.Header)
	}
	if len(g.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(g.Rows))
	}

	tests := []struct {
		row, col int
		value    interface{}
		kind     string
	}{
		{0, 0, "a1", CellID},
		{0, 1, "Compile", CellSection},
		{0, 2, "Linux", CellItem},
		{0, 3, "todo", CellValue},
		{1, 1, nil, CellFiller},
		{1, 2, "Windows", CellItem},
		{1, 3, nil, CellValue},
		{2, 1, "Package", CellItem},
		{2, 2, nil, CellEmpty},
		{2, 3, Formula(`IF(1>0,"ok","no")`), CellValue},
	}
	for _, tt := range tests {
		if got := g.Rows[tt.row][tt.col]; got != tt.value {
			t.Errorf("cell (%d,%d) = %v (%T), expected %v", tt.row, tt.col, got, got, tt.value)
		}
		if got := g.Kinds[tt.row][tt.col]; got != tt.kind {
			t.Errorf("kind (%d,%d) = %q, expected %q", tt.row, tt.col, got, tt.kind)
		}
	}

	if len(g.Images) != 1 || g.Images[0].Row != 0 || g.Images[0].Col != 1 {
		t.Errorf("Expected one image anchored at (0,1), got %+v", g.Images)
	}
	if g.RowID(1) != "a2" {
		t.Errorf("Expected row id a2, got %q", g.RowID(1))
	}
}

func TestFlattenRepeatsAfterBreak(t *testing.T) {
	root := &models.TreeNode{ID: "r", Children: []*models.TreeNode{
		{ID: "x", Text: "X", Children: []*models.TreeNode{
			{ID: "y", Text: "Y", Children: []*models.TreeNode{{ID: "y1"}, {ID: "y2"}}},
			{ID: "z", Text: "Z", Children: []*models.TreeNode{{ID: "z1"}}},
		}},
	}}

	g, err := Flatten(root, DefaultOptions(nil))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	// y2 shares X and Y with y1; z1 shares only X.
	if g.Rows[1][1] != nil || g.Rows[1][2] != nil {
		t.Errorf("Expected shared ancestors nulled on row 1, got %v", g.Rows[1])
	}
	if g.Rows[2][1] != nil || g.Rows[2][2] != "Z" {
		t.Errorf("Expected [nil Z] on row 2, got %v", g.Rows[2][1:3])
	}
	if g.Rows[2][3] != "z1" {
		t.Errorf("Leaf label falls back to id, got %v", g.Rows[2][3])
	}
}

func TestApplyFiller(t *testing.T) {
	g, err := Flatten(sampleTree(), DefaultOptions(nil))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	g.ApplyFiller("〃")

	if g.Rows[1][1] != "〃" {
		t.Errorf("Expected filler, got %v", g.Rows[1][1])
	}
	if g.Rows[2][2] != nil {
		t.Errorf("Empty cells must not receive filler, got %v", g.Rows[2][2])
	}
}

func TestFlattenEmptySheet(t *testing.T) {
	g, err := Flatten(&models.TreeNode{ID: "r", Image: "cover.png"}, DefaultOptions([]string{"Status"}))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if g.Height() != 1 || g.Width() != 2 {
		t.Errorf("Expected 1x2 grid, got %dx%d", g.Height(), g.Width())
	}
	if len(g.Images) != 1 || g.Images[0].Row != -1 {
		t.Errorf("Expected header image anchor, got %+v", g.Images)
	}
}

type upperFormatter struct{}

func (upperFormatter) FormatLabel(n *models.TreeNode, depth int) (string, error) {
	return strings.ToUpper(n.Label()), nil
}

func (upperFormatter) FormatValue(column string, value interface{}, n *models.TreeNode) (interface{}, error) {
	if value == nil {
		return "n/a", nil
	}
	return value, nil
}

func TestFlattenFormatter(t *testing.T) {
	opts := DefaultOptions([]string{"Status"})
	opts.Formatter = upperFormatter{}

	g, err := Flatten(sampleTree(), opts)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if g.Rows[0][1] != "COMPILE" {
		t.Errorf("Expected COMPILE, got %v", g.Rows[0][1])
	}
	if g.Rows[1][3] != "n/a" {
		t.Errorf("Expected n/a, got %v", g.Rows[1][3])
	}
}

func TestValidateFormula(t *testing.T) {
	tests := []struct {
		formula string
		valid   bool
	}{
		{"=SUM(A1:A3)", true},
		{"=IF(A1>0,(B1+1)*2,0)", true},
		{"=SUM(A1:A3", false},
		{"=(1+2", false},
	}

	for _, tt := range tests {
		err := ValidateFormula(tt.formula)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateFormula(%q) error = %v, expected valid=%v", tt.formula, err, tt.valid)
		}
	}

	root := &models.TreeNode{ID: "r", Children: []*models.TreeNode{
		{ID: "x", Values: map[string]interface{}{"Total": "=SUM(A1"}},
	}}
	if _, err := Flatten(root, DefaultOptions([]string{"Total"})); err == nil {
		t.Errorf("Expected Flatten to reject an invalid formula")
	}
}

package checksheet

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/hash"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/merge"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/tree"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/workbook"
	"github.com/xuri/excelize/v2"
)

// Render renders doc into the workbook at path, creating it when needed,
// and saves the result.
func Render(ctx context.Context, path string, doc *models.Document, opts Options) (*Report, error) {
	logger := opts.logger().With("run_id", uuid.NewString(), "workbook", filepath.Base(path))
	opts.Logger = logger

	wb, err := workbook.Open(path, logger)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	report, err := RenderWorkbook(ctx, wb, doc, opts)
	if err != nil {
		return report, err
	}
	if err := wb.Save(); err != nil {
		return report, err
	}
	logger.Info("workbook saved",
		"generated", len(report.Generated),
		"skipped", len(report.Skipped),
		"removed", len(report.Removed),
		"merged_rows", report.MergedRows,
		"missing_images", len(report.MissingImages))
	return report, nil
}

// RenderWorkbook renders doc into an open workbook without saving it.
//
// Digests are computed in parallel first; every workbook mutation then
// happens on the calling goroutine. The context is checked between sheets.
func RenderWorkbook(ctx context.Context, wb *workbook.Workbook, doc *models.Document, opts Options) (*Report, error) {
	if err := tree.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	prepared, err := tree.Prepare(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	r := &renderer{
		wb:     wb,
		doc:    prepared,
		opts:   opts,
		logger: opts.logger(),
		report: &Report{Renamed: make(map[string]string)},
	}
	if err := r.run(ctx); err != nil {
		return r.report, err
	}
	return r.report, nil
}

type renderer struct {
	wb     *workbook.Workbook
	doc    *models.Document
	opts   Options
	logger *slog.Logger
	report *Report

	states  map[string]*models.SheetState
	digests map[string]hash.Result
	names   map[string]string // node id -> assigned sheet name
}

func (r *renderer) run(ctx context.Context) error {
	states, err := r.wb.LoadStates()
	if err != nil {
		return err
	}
	r.states = states

	r.digests, err = hash.Compute(ctx, r.opts.ImageDir, r.doc.Sheets, r.doc.Columns, r.opts.Concurrency)
	if err != nil {
		return NewRenderError("", "hash", err)
	}
	r.collectMissing()

	if err := r.prune(); err != nil {
		return err
	}
	if err := r.assignNames(); err != nil {
		return err
	}

	for _, root := range r.doc.Sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.renderSheet(root); err != nil {
			return err
		}
	}

	if r.opts.IndexSheet != "" {
		if err := r.renderIndex(); err != nil {
			return err
		}
	}

	if r.doc.Title != "" {
		if err := r.wb.File().SetDocProps(&excelize.DocProperties{Title: r.doc.Title}); err != nil {
			return err
		}
	}
	if err := r.wb.RemoveDefaultSheet(); err != nil {
		return err
	}
	if r.opts.IndexSheet != "" {
		r.wb.Activate(r.opts.IndexSheet)
	}
	return nil
}

func (r *renderer) collectMissing() {
	seen := make(map[string]bool)
	for _, d := range r.digests {
		for _, m := range d.Missing {
			if !seen[m] {
				seen[m] = true
				r.report.MissingImages = append(r.report.MissingImages, m)
			}
		}
	}
	sort.Strings(r.report.MissingImages)
	for _, m := range r.report.MissingImages {
		r.logger.Warn("image not found", "path", m)
	}
}

// prune deletes the sheets of managed nodes that left the document.
func (r *renderer) prune() error {
	present := make(map[string]bool, len(r.doc.Sheets))
	for _, root := range r.doc.Sheets {
		present[root.ID] = true
	}

	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := r.states[id]
		if present[id] || id == models.IndexStateID {
			continue
		}
		if !r.opts.ShouldPrune() {
			continue
		}
		if err := r.wb.DeleteSheet(st.Sheet); err != nil {
			return NewRenderError(st.Sheet, "prune", err)
		}
		if err := r.wb.DropState(id); err != nil {
			return NewRenderError(st.Sheet, "prune", err)
		}
		delete(r.states, id)
		r.report.Removed = append(r.report.Removed, st.Sheet)
		r.logger.Info("sheet removed", "sheet", st.Sheet, "id", id)
	}
	return nil
}

// assignNames picks a unique sheet name per root and renames existing
// sheets. Renames go through temporary names so sheets can swap names.
func (r *renderer) assignNames() error {
	owned := make(map[string]bool)
	for id, st := range r.states {
		if r.wb.HasSheet(st.Sheet) && (id == models.IndexStateID || r.inDocument(id)) {
			owned[strings.ToLower(st.Sheet)] = true
		}
	}
	taken := make(map[string]bool)
	for _, name := range r.wb.Sheets() {
		if !owned[strings.ToLower(name)] {
			taken[strings.ToLower(name)] = true
		}
	}
	if r.opts.IndexSheet != "" {
		taken[strings.ToLower(r.opts.IndexSheet)] = true
	}

	r.names = make(map[string]string, len(r.doc.Sheets))
	for _, root := range r.doc.Sheets {
		name := workbook.UniqueSheetName(root.Label(), taken)
		taken[strings.ToLower(name)] = true
		r.names[root.ID] = name
	}
	if r.opts.IndexSheet != "" {
		r.names[models.IndexStateID] = r.opts.IndexSheet
	}

	type rename struct{ id, from, tmp, to string }
	var renames []rename
	for id, to := range r.names {
		st := r.states[id]
		if st == nil || !r.wb.HasSheet(st.Sheet) || st.Sheet == to {
			continue
		}
		renames = append(renames, rename{id: id, from: st.Sheet, to: to})
	}
	sort.Slice(renames, func(i, j int) bool { return renames[i].id < renames[j].id })

	for i := range renames {
		renames[i].tmp = fmt.Sprintf("~checksheet%d", i)
		if err := r.wb.RenameSheet(renames[i].from, renames[i].tmp); err != nil {
			return NewRenderError(renames[i].from, "rename", err)
		}
	}
	for _, rn := range renames {
		if err := r.wb.RenameSheet(rn.tmp, rn.to); err != nil {
			return NewRenderError(rn.from, "rename", err)
		}
		st := r.states[rn.id]
		st.Sheet = rn.to
		st.Range.Sheet = rn.to
		r.report.Renamed[rn.from] = rn.to
		r.logger.Info("sheet renamed", "from", rn.from, "to", rn.to, "id", rn.id)
	}
	return nil
}

func (r *renderer) inDocument(id string) bool {
	for _, root := range r.doc.Sheets {
		if root.ID == id {
			return true
		}
	}
	return false
}

func (r *renderer) renderSheet(root *models.TreeNode) error {
	name := r.names[root.ID]
	digest := r.digests[root.ID]
	st := r.states[root.ID]
	exists := st != nil && r.wb.HasSheet(st.Sheet)

	if exists && !r.opts.ShouldRegenerateAll() && !hash.NeedsRegeneration(st, digest) {
		r.report.Skipped = append(r.report.Skipped, name)
		r.logger.Debug("sheet unchanged", "sheet", name, "id", root.ID)
		if r.renamedTo(name) {
			// Refresh the anchor name, which still points at the old sheet name.
			if err := r.wb.SaveState(st); err != nil {
				return NewRenderError(name, "state", err)
			}
		}
		return nil
	}

	lopts := layout.DefaultOptions(r.doc.Columns)
	lopts.Formatter = r.opts.Formatter
	grid, err := layout.Flatten(root, lopts)
	if err != nil {
		return NewRenderError(name, "layout", err)
	}
	grid.ApplyFiller(r.opts.Filler)

	var old *models.RangeInfo
	if exists {
		old = r.previousRegion(st)
	} else if err := r.wb.EnsureSheet(name); err != nil {
		return NewRenderError(name, "write", err)
	}

	at, rows, err := r.sync(name, grid, old)
	if err != nil {
		return err
	}

	info, failed, err := r.wb.WriteGrid(at, grid, rows, r.writeOptions())
	r.report.FailedImages = append(r.report.FailedImages, failed...)
	if err != nil {
		return NewRenderError(name, "write", err)
	}

	next := &models.SheetState{
		ID:        root.ID,
		Sheet:     name,
		Hash:      digest.Hash,
		ImageHash: digest.ImageHash,
		Range:     info,
	}
	if err := r.wb.SaveState(next); err != nil {
		return NewRenderError(name, "state", err)
	}
	r.states[root.ID] = next
	r.report.Generated = append(r.report.Generated, name)
	r.logger.Info("sheet generated", "sheet", name, "id", root.ID, "rows", len(grid.Rows))
	return nil
}

func (r *renderer) renamedTo(name string) bool {
	for _, to := range r.report.Renamed {
		if to == name {
			return true
		}
	}
	return false
}

// previousRegion returns the region recorded for a sheet, falling back to
// the used range when the anchor was lost.
func (r *renderer) previousRegion(st *models.SheetState) *models.RangeInfo {
	info := st.Range
	info.Sheet = st.Sheet
	if info.Rows() > 0 && info.Cols() > 0 {
		return &info
	}
	detected, ok, err := r.wb.DetectRegion(st.Sheet)
	if err != nil || !ok {
		return nil
	}
	detected.IDColumn = info.IDColumn
	return &detected
}

// sync captures the values of the old region, resizes it to the grid and
// clears it. It returns the region to write the grid at, which keeps the
// origin and the ignored columns of the old region, and the grid rows with
// the user values merged in. Without an old region the grid goes to A1.
func (r *renderer) sync(name string, grid *layout.Grid, old *models.RangeInfo) (models.RangeInfo, [][]interface{}, error) {
	at := models.RangeInfo{Sheet: name, R1: 1, C1: 1}
	if old == nil {
		return at, grid.Rows, nil
	}

	header, data, err := r.wb.ReadRegion(*old)
	if err != nil {
		return at, nil, NewRenderError(name, "snapshot", err)
	}
	snap := merge.Capture(header, data, old.IDColumn)
	projected, unknown := merge.Project(snap, grid.Header)
	carried := ignoredByName(*old, header, grid.Header)
	ignore := append(grid.GeneratedColumns(), unknown...)
	ignore = append(ignore, carried...)
	rows, matched := merge.Merge(grid.Rows, grid.IDColumn, ignore, projected)
	r.report.MergedRows += matched

	fitted, err := r.wb.FitRegion(*old, grid.Height(), grid.Width())
	if err != nil {
		return at, nil, NewRenderError(name, "fit", err)
	}
	if err := r.wb.ClearRegion(fitted); err != nil {
		return at, nil, NewRenderError(name, "fit", err)
	}
	at.R1, at.C1 = fitted.R1, fitted.C1
	at.IgnoreColumns = carried
	return at, rows, nil
}

// ignoredByName maps the ignored columns recorded for the old region onto
// the offsets of the same-named columns of newHeader.
func ignoredByName(old models.RangeInfo, oldHeader, newHeader []string) []int {
	names := make(map[string]bool, len(old.IgnoreColumns))
	for c, name := range oldHeader {
		if old.Ignored(c) {
			names[name] = true
		}
	}
	var cols []int
	for c, name := range newHeader {
		if names[name] {
			cols = append(cols, c)
		}
	}
	return cols
}

func (r *renderer) writeOptions() workbook.WriteOptions {
	wopts := workbook.DefaultWriteOptions()
	wopts.ImageDir = r.opts.ImageDir
	if r.opts.ImageScale > 0 {
		wopts.ImageScale = r.opts.ImageScale
	}
	return wopts
}

// renderIndex rebuilds the index sheet, keeping the values of its user
// metadata columns.
func (r *renderer) renderIndex() error {
	name := r.opts.IndexSheet
	entries := make([]workbook.IndexEntry, 0, len(r.doc.Sheets))
	for _, root := range r.doc.Sheets {
		entries = append(entries, workbook.IndexEntry{
			ID:    root.ID,
			Sheet: r.names[root.ID],
			Title: root.Label(),
			Items: len(tree.Leaves(root)),
		})
	}
	grid := workbook.IndexGrid(entries, r.doc.IndexColumns)

	st := r.states[models.IndexStateID]
	var old *models.RangeInfo
	if st != nil && r.wb.HasSheet(name) {
		st.Sheet = name
		old = r.previousRegion(st)
	} else if err := r.wb.EnsureSheet(name); err != nil {
		return NewRenderError(name, "index", err)
	}

	at, rows, err := r.sync(name, grid, old)
	if err != nil {
		return err
	}
	info, _, err := r.wb.WriteGrid(at, grid, rows, r.writeOptions())
	if err != nil {
		return NewRenderError(name, "index", err)
	}
	if err := r.wb.LinkIndex(info, rows); err != nil {
		return NewRenderError(name, "index", err)
	}
	next := &models.SheetState{ID: models.IndexStateID, Sheet: name, Range: info}
	if err := r.wb.SaveState(next); err != nil {
		return NewRenderError(name, "state", err)
	}
	r.states[models.IndexStateID] = next
	return nil
}

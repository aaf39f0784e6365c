package models

// IndexStateID keys the state of the index sheet. It is reserved and cannot
// be used as a root node id.
const IndexStateID = "@index"

// SheetState is the per-sheet metadata persisted between renders.
type SheetState struct {
	// ID is the root node id the sheet was generated from.
	ID string `json:"id"`
	// Sheet is the current worksheet name.
	Sheet string `json:"sheet"`
	// Hash is the content hash of the root node, label excluded.
	Hash string `json:"hash"`
	// ImageHash is the combined hash of the referenced image files.
	ImageHash string `json:"image_hash,omitempty"`
	// Range is the synchronized region of the sheet.
	Range RangeInfo `json:"range"`
}


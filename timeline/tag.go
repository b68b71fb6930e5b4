package timeline

import "github.com/lostatc/reversion/store"

// Tag is a labelled, optionally-pinned reference to a snapshot, unique by
// name within a timeline (spec.md §3 "Tag").
type Tag struct {
	tl  *Timeline
	row store.TagRow
}

// ID returns the tag's row id.
func (t *Tag) ID() int64 { return t.row.ID }

// Name returns the tag's name.
func (t *Tag) Name() string { return t.row.Name }

// Description returns the tag's free-text description.
func (t *Tag) Description() string { return t.row.Description }

// Pinned reports whether this tag pins its snapshot against deletion by
// clean().
func (t *Tag) Pinned() bool { return t.row.Pinned }

// SnapshotID returns the id of the snapshot this tag labels.
func (t *Tag) SnapshotID() int64 { return t.row.SnapshotID }

// Modify updates the tag's mutable description/pinned fields.
func (t *Tag) Modify(description string, pinned bool) error {
	if err := t.tl.store.ModifyTag(t.row.ID, description, pinned); err != nil {
		return err
	}
	t.row.Description, t.row.Pinned = description, pinned
	return nil
}

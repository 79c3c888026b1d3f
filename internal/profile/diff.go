package profile

// Change is a field whose value differs between a snapshot and a patch.
type Change struct {
	Field string
	Old   string
	New   string
}

// Diff compares the patch against before field by field, in string form.
// Fields absent from the patch and fields whose value is unchanged are
// skipped.
func Diff(before Snapshot, p Patch) []Change {
	var changes []Change
	for _, fv := range p.Fields() {
		old, _ := before.Value(fv.Field)
		if old == fv.Value {
			continue
		}
		changes = append(changes, Change{Field: fv.Field, Old: old, New: fv.Value})
	}
	return changes
}

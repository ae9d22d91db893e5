// Package persist is the unit of work that sits between tracked columns and a
// byte-oriented Store.
//
// A Session binds itself as the dirty hook of every attached mutable.Column,
// so in-place mutation anywhere in a tracked tree marks the column dirty.
// Whole-value replacement is detected by comparing the decoerced value with
// the snapshot taken at load or at the last flush.
//
// Data flow:
//
//	Store.Load -> Column.Decode -> mutate -> DirtyHook -> Session.Flush -> Column.Encode -> Store.Save
//
// Keys:
//
//	Ref.Identifier() is `entity/id/attribute`. Store implementations share
//	NextMeta so they agree on SnapshotID and ETag semantics.
package persist

package mutable

// Column is what a persistence layer needs from a tracked attribute: a
// change chain it can bind a dirty flag to, a storage encoding, and a
// snapshot to compare against on flush. *Root[T] implements it for every T.
type Column interface {
	Notifier
	Bind(hook DirtyHook)
	Set(value any) error
	Encode() ([]byte, error)
	Decode(data []byte) error
	Reset() error
	Snapshot() any
	Equal(other any) bool
	IsNil() bool
	CodecName() string
}

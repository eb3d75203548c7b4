package coscope

// noCopy may be embedded in structs that must not be copied after
// first use. go vet's copylocks check recognizes the Lock and Unlock
// methods.
type noCopy struct{}

// Lock is a no-op used by the copylocks checker.
func (*noCopy) Lock() {}

// Unlock is a no-op used by the copylocks checker.
func (*noCopy) Unlock() {}

// Package kvstore provides the namespaced key-value stores the record
// history is written to. All implementations share localStorage-like
// semantics: whole-value reads and writes, last writer wins.
package kvstore

// KV is a flat string key-value store.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(key, value string) error
}

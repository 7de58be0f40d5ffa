// Package registry holds the two concurrent tables behind a bridge: pending
// calls keyed by correlation id and handlers keyed by name.
package registry

// Package types defines entity states, type descriptors, the store contract
// consumed by the change-tracking engine, configuration, and the standard
// error types shared by the tracker packages.
package types

// Package types defines the Catalog interface, the song entity, blob kinds,
// configuration, and the standard errors shared by every midishelf package.
package types

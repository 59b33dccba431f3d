// Package midishelf holds build-wide constants.
package midishelf

// Version is the release of the shelf command. It is also the default
// app_version recorded in backup archives.
const Version = "1.0.0"

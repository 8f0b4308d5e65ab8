// Package testutil provides small helpers shared by the example programs.
package testutil

import "os"

// RemoveAll deletes a scratch container or directory tree, ignoring errors.
// Example programs defer it on their temp directories so a failed run still
// cleans up after itself.
func RemoveAll(path string) { _ = os.RemoveAll(path) }

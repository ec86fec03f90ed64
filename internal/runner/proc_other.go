//go:build !unix

package runner

import "os/exec"

// configureProcessGroup is a no-op where process groups are unavailable;
// context cancellation kills only the direct child.
func configureProcessGroup(cmd *exec.Cmd) {}

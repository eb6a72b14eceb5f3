//go:build !unix

package execrun

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}

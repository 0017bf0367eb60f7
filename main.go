// workdir - command-line browser for an agent's remote working directory.
//
// One-shot commands (ls, put, get, rm) open a session, act, and exit.
// 'workdir browse' keeps a session open as an interactive shell.
package main

import (
	"os"

	"github.com/agentdesk/workdir/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

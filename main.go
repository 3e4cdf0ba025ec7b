// Command dolphinwatch is the real-time dolphin echolocation detector.
package main

import (
	"fmt"
	"os"

	"github.com/tphakala/dolphinwatch/cmd"
	"github.com/tphakala/dolphinwatch/internal/apperr"
)

// Exit codes: 0 clean, 1 config/fatal error, 2 unreachable external
// service detected at startup.
const (
	exitOK                = 0
	exitFatal             = 1
	exitServiceUnreachable = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.RootCommand().Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(os.Stderr, err)

	if apperr.IsCategory(err, apperr.CategoryRingDown) || apperr.IsKind(err, apperr.KindUnreachable) {
		return exitServiceUnreachable
	}
	return exitFatal
}

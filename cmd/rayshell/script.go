package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rayshell/rayshell/internal/executor"
)

// runScript loads and executes a whole file as one source blob, the way
// the original's runScript reads the file in one shot rather than line by
// line. A leading shebang line is dropped first — the original has no
// equivalent, since rayshell files are not independently executable on
// disk, but scripts copied in from a real shell commonly carry one.
func runScript(sh *executor.Shell, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("rayshell: %s: %w", path, err)
	}

	src := stripShebang(string(data))
	return evalLine(sh, src)
}

func stripShebang(src string) string {
	if !strings.HasPrefix(src, "#!") {
		return src
	}
	if idx := strings.IndexByte(src, '\n'); idx >= 0 {
		return src[idx+1:]
	}
	return ""
}

// runOnce implements the -c flag: parse and run a single passed-in
// command string, grounded on the original's runOnce helper.
func runOnce(sh *executor.Shell, cmd string) (int, error) {
	if strings.TrimSpace(cmd) == "" {
		return 0, nil
	}
	return evalLine(sh, cmd)
}

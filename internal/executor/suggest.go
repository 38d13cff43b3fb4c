package executor

import (
	"os"
	"path/filepath"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rayshell/rayshell/internal/builtin"
)

// suggestCommand finds the closest known command name to one that just
// failed to exec, the same way the teacher's runtime/planner package
// suggests a misspelled decorator name via fuzzy.RankFindFold — here
// searched over builtins plus every executable on PATH, for a
// "command not found, did you mean X?" hint.
func suggestCommand(name string) string {
	candidates := append([]string(nil), builtin.Names()...)
	candidates = append(candidates, pathExecutables()...)
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}

func pathExecutables() []string {
	var names []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	return names
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rayshell/rayshell/internal/executor"
)

// repl runs the interactive loop, grounded on the original's repl()
// function: a prompt, a quit/exit/bye sentinel, and a `./path` prefix
// that drops into script mode instead of being parsed as a command.
// github.com/chzyer/readline replaces the original's Python `readline`
// module with the idiomatic Go equivalent, giving history and line
// editing for free.
func repl(sh *executor.Shell) (int, error) {
	rl, err := readline.New("rayshell> ")
	if err != nil {
		return 1, err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 1, err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "bye" || trimmed == "exit" || trimmed == "quit" {
			fmt.Println("bye-bye")
			break
		}

		sh.RecordHistory(line)

		if strings.HasPrefix(trimmed, "./") {
			if _, err := runScript(sh, trimmed); err != nil {
				fmt.Println(err)
			}
			continue
		}

		status, err := evalLine(sh, line)
		if err != nil {
			fmt.Println(err)
		}
		_ = status

		if done, code := sh.ExitRequested(); done {
			return code, nil
		}
	}
	return 0, nil
}

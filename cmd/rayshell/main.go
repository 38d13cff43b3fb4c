// Command rayshell is the thin wiring layer over the interpreter core:
// it owns flag parsing and picks one of three run modes (one-shot -c
// string, script file, interactive REPL), following the cobra-based
// entry point style of the teacher's cli/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rayshell/rayshell/internal/executor"
)

func main() {
	var (
		command string
		debug   bool
	)

	rootCmd := &cobra.Command{
		Use:           "rayshell [script]",
		Short:         "A small job-control-aware shell",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				os.Setenv("RAYSHELL_DEBUG", "1")
			}

			sh := executor.New()
			defer sh.Close()

			var status int
			var err error
			switch {
			case command != "":
				status, err = runOnce(sh, command)
			case len(args) == 1:
				status, err = runScript(sh, args[0])
			default:
				status, err = repl(sh)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			if status != 0 {
				cmd.SilenceUsage = true
				os.Exit(status)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command string and exit")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug tracing (same as RAYSHELL_DEBUG)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

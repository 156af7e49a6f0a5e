package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		if isInteractiveTerminal(os.Stdin) {
			return cmdChat([]string{})
		}
		printUsage()
		return nil
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage()
		return nil
	case "init":
		return cmdInit(args[1:])
	case "run":
		return cmdRun(args[1:])
	case "tasks":
		return cmdTasks(args[1:])
	case "pipeline":
		return cmdPipeline(args[1:])
	case "chat":
		return cmdChat(args[1:])
	case "session":
		return cmdSession(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Println("deepseek-code - autonomous coding agent for the DeepSeek API")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  deepseek-code init [--workspace DIR] [--force]")
	fmt.Println(`  deepseek-code run [--workspace DIR] [--max-steps N] [--verbose] "<task>"`)
	fmt.Println(`  deepseek-code tasks [--workspace DIR] [--max-steps N] "<task>" ["<task>" ...]`)
	fmt.Println(`  deepseek-code pipeline [--workspace DIR] [--stage-steps N] "<task>"`)
	fmt.Println("  deepseek-code chat [--workspace DIR] [--session ID]")
	fmt.Println("  deepseek-code session list [--workspace DIR]")
	fmt.Println("  deepseek-code session show [--workspace DIR] [--tail N] <id>")
}

func isInteractiveTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

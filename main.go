package main

import (
	"fmt"
	"os"
	"strings"

	"postkeeper/service"
)

const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	RealMain()
}

// RealMain dispatches the first argument to a command.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]
	switch cmd {
	case "help":
		printHelp()
	case "version":
		fmt.Printf("postkeeper version %s\n", CliVersion)
	case "serve":
		exit(service.Serve(args))
	case "proxy":
		exit(service.Proxy(args))
	case "sync":
		exit(service.SyncFeed(args))
	case "db":
		exit(service.HandleCommand(args))
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		exit(1)
	}
}

func printHelp() {
	helpText := `Usage: postkeeper <command> [options]
Commands:
  help                           Display this help message.
  version                        Show version information.
  serve [--config <file>]        Run the posts service.
  proxy [--config <file>]        Run the pass-through proxy in front of the posts service.
  sync  [--config <file>]        Import the external feed once and exit.
  db    [--config <file>] <cmd>  Maintain the document store (init, clean, backup, restore, stats).
`
	fmt.Println(helpText)
}

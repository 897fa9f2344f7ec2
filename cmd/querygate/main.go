package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "add-connection":
		if err := runAddConnection(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "rotate-key":
		if err := runRotateKey(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("querygate — SQL execution gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  querygate serve            Start the HTTP and MCP server")
	fmt.Println("  querygate add-connection   Register a database connection interactively")
	fmt.Println("  querygate rotate-key       Rotate the credential master key")
	fmt.Println("  querygate --help           Show this help message")
}

// Package main provides the CLI entry point for the research agent
// backend.
//
// Start the server:
//
//	researchagent serve --config researchagent.yaml
//
// Inspect persisted sessions:
//
//	researchagent sessions list
//	researchagent sessions show <session_id>
//
// Check configured MCP servers and environment:
//
//	researchagent mcp list
//	researchagent doctor
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

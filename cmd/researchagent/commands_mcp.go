package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/researchagent/internal/mcp"
	"github.com/haasonsaas/researchagent/internal/observability"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect configured external tool servers",
	}
	cmd.AddCommand(newMCPListCmd())
	return cmd
}

func newMCPListCmd() *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers, optionally connecting to enumerate tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			if !connect {
				fmt.Fprintln(w, "SERVER\tTRANSPORT\tTARGET")
				for name, sc := range cfg.MCP.Servers {
					target := sc.Command
					if sc.Transport == "grpc" {
						target = sc.Address
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", name, sc.Transport, target)
				}
				return nil
			}

			logger := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})
			var serverConfigs []*mcp.ServerConfig
			for name, sc := range cfg.MCP.Servers {
				serverConfigs = append(serverConfigs, &mcp.ServerConfig{
					Name:      name,
					Transport: mcp.TransportType(sc.Transport),
					Command:   sc.Command,
					Args:      sc.Args,
					Env:       sc.Env,
					Address:   sc.Address,
				})
			}
			bridge, err := mcp.NewBridge(serverConfigs, logger)
			if err != nil {
				return err
			}
			defer bridge.Close()

			connected := bridge.ConnectAll(cmd.Context())
			fmt.Fprintf(w, "connected %d/%d servers\n\n", connected, len(serverConfigs))
			fmt.Fprintln(w, "TOOL\tDESCRIPTION")
			for _, t := range bridge.Tools() {
				fmt.Fprintf(w, "%s\t%s\n", t.Name(), t.Description())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "connect to servers and enumerate their tools")
	return cmd
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			check := func(label string, ok bool, detail string) {
				mark := "ok"
				if !ok {
					mark = "MISSING"
				}
				fmt.Printf("%-28s %-8s %s\n", label, mark, detail)
			}

			check("environment", true, cfg.Environment)
			check("data directory", cfg.DataBaseDir != "", cfg.DataBaseDir)
			check("model provider", cfg.LLM.Anthropic.APIKey != "" || cfg.LLM.OpenAI.APIKey != "",
				"anthropic or openrouter key")
			check("web search (EXA_API_KEY)", cfg.Tools.WebSearch.APIKey != "", "required for web_search")
			check("code execution", cfg.SandboxEnabled(), "optional; disables execute_python when absent")
			check("mcp servers", true, fmt.Sprintf("%d configured", len(cfg.MCP.Servers)))
			return nil
		},
	}
}

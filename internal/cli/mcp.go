package cli

import (
	"errors"
	"log/slog"

	heromcp "github.com/meltforce/heromissions/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the HeroMissions MCP tools over stdio",
	Long: `mcp runs an MCP server on stdin/stdout whose tools read mission history,
stats and the exercise catalog from a remote HeroMissions server. Point an MCP
client at "missionctl mcp --server https://heromissions.example.ts.net".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			return errors.New("--server is required")
		}
		// stdout carries the protocol, so logs go to stderr.
		log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
		hc := heromcp.NewHTTPClient(serverURL)
		log.Info("serving MCP over stdio", "server", serverURL)
		return server.ServeStdio(heromcp.New(hc, hc, version, log))
	},
}

func init() {
	mcpCmd.Flags().String("server", "", "HeroMissions server URL")
}

package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the Pulse client.
// It registers the stream command group; callers add server commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse real-time data distribution",
	}
	root.AddCommand(NewStreamCommand(baseURL))
	return root
}

// Package flowcanvascmder
package flowcanvascmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/flowcanvas/flowcanvas/cmd/flowcanvas/config"
	servecmder "github.com/flowcanvas/flowcanvas/cmd/flowcanvas/serve"
	versioncmder "github.com/flowcanvas/flowcanvas/cmd/version"
)

const flowcanvasLongDesc string = `Flowcanvas turns conversations into diagrams on a shared canvas.

Run the server using:
  flowcanvas serve     Run the chat and usage API server

Manage configuration using:
  flowcanvas config    Get, set, or list configuration values`

const flowcanvasShortDesc string = "Flowcanvas - Conversational Diagramming"

func NewFlowcanvasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowcanvas",
		Short: flowcanvasShortDesc,
		Long:  flowcanvasLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .flowcanvas directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

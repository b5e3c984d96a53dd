// Package medibotcmder
package medibotcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/medibot/cmd/medibot/chat"
	configcmder "github.com/papercomputeco/medibot/cmd/medibot/config"
	ingestcmder "github.com/papercomputeco/medibot/cmd/medibot/ingest"
	servecmder "github.com/papercomputeco/medibot/cmd/medibot/serve"
	sessioncmder "github.com/papercomputeco/medibot/cmd/medibot/session"
	versioncmder "github.com/papercomputeco/medibot/cmd/version"
)

const medibotLongDesc string = `Medibot is a session-aware medical question answering assistant.

Answers are grounded in a medical knowledge base held in a vector store,
and every conversation is kept as a session so follow-up questions are
understood in context.

Get started:
  medibot ingest docs/*.json   Load reference documents into the vector store
  medibot serve                Run the API server
  medibot chat                 Chat with a running server`

const medibotShortDesc string = "Medibot - contextual medical assistant"

func NewMedibotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medibot",
		Short: medibotShortDesc,
		Long:  medibotLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .medibot/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

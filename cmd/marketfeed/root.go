package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute builds and runs the marketfeed root command, grounded on
// sawpanic-cryptorun's cmd/cprotocol.Execute: a bare cobra.Command with
// one subcommand registered and ExecuteContext driving cancellation.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "marketfeed",
		Short: "Unified multi-exchange cryptocurrency market-data streaming client",
	}
	root.AddCommand(streamCmd())
	log.Info().Msg("marketfeed starting")
	return root.ExecuteContext(ctx)
}

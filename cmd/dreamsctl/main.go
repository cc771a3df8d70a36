package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zym9863/Dream-s-Exit/internal/client"
	"github.com/zym9863/Dream-s-Exit/internal/identity"
	"github.com/zym9863/Dream-s-Exit/internal/logger"
)

// app carries what every subcommand needs.
type app struct {
	api      string
	debug    bool
	out      io.Writer
	identity identity.Provider
	log      zerolog.Logger
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.api, client.WithDebugLogging(a.debug))
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dreamsctl",
		Short:         "CLI client for the dreams-exit API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.api, "api", "a", envOr("DREAMS_EXIT_API", "http://localhost:8080"), "dreams-exit service base URL")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "log HTTP requests and responses to stderr")

	rootCmd.AddCommand(newMemoriesCmd(a), newEchoesCmd(a), newIdentityCmd(a))
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// reportFailure prints the generic notice followed by the classified error.
func reportFailure(w io.Writer, err error) {
	_, _ = fmt.Fprintln(w, "something went wrong, please try again")
	_, _ = fmt.Fprintf(w, "error: %v\n", err)
}

func main() {
	log := logger.NewWithWriter(os.Stderr, "dreamsctl", envOr("DREAMS_EXIT_LOG_LEVEL", "warn"))
	a := &app{out: os.Stdout, identity: identity.Default(log), log: log}

	if err := newRootCmd(a).Execute(); err != nil {
		reportFailure(os.Stderr, err)
		os.Exit(1)
	}
}

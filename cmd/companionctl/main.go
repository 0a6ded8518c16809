// Command companionctl drives the companion service from the shell: seeding
// vocabulary, starting sessions, recording outcomes and submitting analyses.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chrislearn/mofa-studio/client"
)

const requestTimeout = 15 * time.Second

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type app struct {
	serviceURL string
	debug      bool
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "companionctl",
		Short:         "Manage vocabulary, sessions and analyses of the companion service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        cmd.ErrOrStderr(),
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if a.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				_ = os.Setenv("COMPANION_DEBUG", "true")
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	defaultURL := getEnv("COMPANION_SERVICE_URL", "http://localhost:11545")
	root.PersistentFlags().StringVar(&a.serviceURL, "service-url", defaultURL, "Base URL of the companion service")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable verbose debug output")

	root.AddCommand(a.newSelectCmd())
	root.AddCommand(a.newOutcomeCmd())
	root.AddCommand(a.newItemsCmd())
	root.AddCommand(a.newSessionsCmd())
	root.AddCommand(a.newAnalyzeCmd())
	root.AddCommand(a.newHealthCmd())
	return root
}

// run builds a client and calls fn under the request timeout.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.New(a.serviceURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	start := time.Now()
	err = fn(ctx, c)
	log.Debug().Str("command", cmd.CommandPath()).Dur("elapsed", time.Since(start)).Err(err).Msg("request finished")
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

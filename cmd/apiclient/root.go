package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/shopfront-dev/apiclient"
	"github.com/shopfront-dev/apiclient/tokenauth"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	baseURL   string
	timeout   time.Duration
	retries   int
	debug     bool
	tokenFile string
	tokenURL  string
	clientID  string
}

// errCallFailed is returned after a failed call has been reported, so cobra
// does not print it twice.
var errCallFailed = errors.New("call failed")

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "apiclient",
		Short: "Call a JSON API with retries, timeouts and token refresh",
		Long: `apiclient sends JSON requests to an API and prints the decoded response.

Defaults come from the environment (APICLIENT_BASE_URL, APICLIENT_TIMEOUT,
APICLIENT_RETRY_COUNT, APICLIENT_DEBUG, APICLIENT_APP_VERSION) and can be
overridden with flags. With --token-file the stored bearer token is sent and
refreshed through --token-url when the API answers 401.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides APICLIENT_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-attempt timeout (overrides APICLIENT_TIMEOUT)")
	flags.IntVar(&opts.retries, "retries", -1, "retries after the first attempt (overrides APICLIENT_RETRY_COUNT)")
	flags.BoolVar(&opts.debug, "debug", false, "log requests and dump HTTP traffic")
	flags.StringVar(&opts.tokenFile, "token-file", "", "JSON token file used for the Authorization header")
	flags.StringVar(&opts.tokenURL, "token-url", "", "OAuth2 token endpoint used to refresh the token")
	flags.StringVar(&opts.clientID, "client-id", "", "OAuth2 client ID used to refresh the token")

	root.AddCommand(
		newGetCmd(opts),
		newDeleteCmd(opts),
		newBodyCmd(opts, "post"),
		newBodyCmd(opts, "put"),
		newProductsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// buildClient resolves environment and flags into a client.
func buildClient(cmd *cobra.Command, opts *globalOptions) (*apiclient.Client, error) {
	env, err := apiclient.LoadEnvConfig(apiclient.DefaultEnvPrefix)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		env.BaseURL = opts.baseURL
	}
	if opts.timeout > 0 {
		env.Timeout = opts.timeout
	}
	if opts.retries >= 0 {
		env.RetryCount = opts.retries
	}
	debug := env.Debug || opts.debug

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg := env.Config()
	cfg.OnRequestStart = func(path string) {
		logger.Debug().Str("path", path).Msg("request start")
	}
	cfg.OnRequestEnd = func(path string, duration time.Duration, result apiclient.Result[any]) {
		if result.OK() {
			logger.Debug().Str("path", path).Dur("duration", duration).Msg("request success")
			return
		}
		logger.Error().
			Str("path", path).
			Dur("duration", duration).
			Int("status_code", result.Err().StatusCode()).
			Interface("details", result.Err().Details()).
			Msg("request failure")
	}

	if opts.tokenFile != "" {
		provider := tokenauth.NewProvider(
			tokenauth.NewFileStore(opts.tokenFile),
			&oauth2.Config{ClientID: opts.clientID, Endpoint: oauth2.Endpoint{TokenURL: opts.tokenURL}},
			tokenauth.WithLogger(logger),
		)
		cfg.TokenRefresh = provider.Config()
	}

	clientOpts := []apiclient.Option{apiclient.WithLogger(logger)}
	if debug {
		clientOpts = append(clientOpts, apiclient.WithMiddleware(apiclient.DebugMiddleware(logger)))
	}

	client := apiclient.New(cfg, clientOpts...)
	if !client.IsValid() {
		return nil, client.ValidationError()
	}
	return client, nil
}

// printResult writes a successful body as indented JSON, or reports the
// failure on stderr.
func printResult(cmd *cobra.Command, res apiclient.Result[json.RawMessage]) error {
	if !res.OK() {
		apiErr := res.Err()
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %d %s\n", apiErr.StatusCode(), apiErr.Message())
		if details := apiErr.Details(); details != nil {
			if data, err := json.MarshalIndent(details, "", "  "); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", data)
			}
		}
		return errCallFailed
	}
	return printJSON(cmd.OutOrStdout(), res.Value())
}

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok && len(raw) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

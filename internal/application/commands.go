// Package application implements coursectl, the admin command line for a
// remote course service.
package application

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/coursehub/internal/client"
	"github.com/JonMunkholm/coursehub/internal/logging"
)

// EnvPrefix is prepended to every environment variable coursectl reads,
// e.g. COURSEHUB_URL and COURSEHUB_TOKEN.
const EnvPrefix = "COURSEHUB"

// NewRootCmd builds the coursectl command tree. Each call returns an
// independent tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:               "coursectl",
		Short:             "Reconcile and inspect courses on a CourseHub server",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Long: `coursectl talks to a CourseHub course service over HTTP.

The server URL and admin token come from --url/--token or the
COURSEHUB_URL/COURSEHUB_TOKEN environment variables.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// stdout stays clean for tables and JSON
			logging.SetupWriter(cmd.ErrOrStderr(), v.GetString("log-level"), "text")
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("url", "", "Base URL of the course service")
	flags.String("token", "", "Admin bearer token")
	flags.Int("retries", client.DefaultMaxRetries, "Attempts per request for transient failures")
	flags.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	for _, name := range []string{"url", "token", "retries", "timeout", "log-level"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	root.AddCommand(
		newSyncCmd(v),
		newListCmd(v),
		newDuplicatesCmd(v),
		newVersionCmd(),
	)
	return root
}

// newClient builds the course service client from bound flags and env.
func newClient(v *viper.Viper) (*client.Client, error) {
	baseURL := v.GetString("url")
	if baseURL == "" {
		return nil, fmt.Errorf("no server URL: pass --url or set %s_URL", EnvPrefix)
	}

	token := v.GetString("token")
	if token == "" {
		return nil, fmt.Errorf("no admin token: pass --token or set %s_TOKEN", EnvPrefix)
	}

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = client.DefaultTimeout
	}

	return client.New(baseURL, token,
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
		client.WithMaxRetries(v.GetInt("retries")),
		client.WithInitialInterval(250*time.Millisecond),
	)
}

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "dialerctl",
	Short: "Operate the outbound dialer",
	Long: `dialerctl talks to the dialer API.

Every flag can also be set through the environment with the DIALER_ prefix,
for example DIALER_API_URL and DIALER_TOKEN. Use "dialerctl token" to mint a
token from the shared JWT secret.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DIALER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.String("api-url", "http://localhost:8080", "dialer API base URL")
	pf.String("token", "", "bearer token")
	pf.Duration("timeout", 15*time.Minute, "request timeout; synchronous dispatch is paced and slow")
	pf.String("output", "table", "output format: table, json or yaml")
	pf.Bool("json", false, "shorthand for --output json")
	for _, name := range []string{"api-url", "token", "timeout", "output", "json"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(
		summaryCmd(),
		dispatchCmd(),
		retryCmd(),
		callsCmd(),
		statsCmd(),
		cancelCmd(),
		tokenCmd(),
	)
}

// Relay CLI — клиент HTTP API Relay.
//
// Использование:
//
//	relay-cli [--api-url URL] [--base-path PATH] [--json] <command> [flags]
//
// Команды:
//
//	health      Проверка API
//	publish     Публикация JSON-сообщения
//	rejections  Журнал отклонённых сообщений
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var basePath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "relay-cli",
		Short:         "Relay CLI — publish messages and inspect the relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:3000"
	if v := os.Getenv("RELAY_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&basePath, "base-path", "/api/v1", "API base path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, basePath) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewHealthCmd(clientFn, outputFn),
		cli.NewPublishCmd(clientFn, outputFn),
		cli.NewRejectionsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Relay — сервис переноса сообщений RabbitMQ ⇄ Elasticsearch.
//
// Использование:
//
//	relay <command> [flags]
//
// Команды:
//
//	serve     Запустить сервис: cron-задачи, фоновый цикл, HTTP API
//	transfer  Один батч consume → publish и выход
//	index     Один батч индексации и выход
//	check     Проверка RabbitMQ и Elasticsearch
//
// Конфигурация задаётся переменными окружения (см. internal/config).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay — RabbitMQ to Elasticsearch message relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logger := telemetry.SetupLogger(os.Stdout, "relay")

	rootCmd.AddCommand(
		newServeCmd(logger),
		newTransferCmd(logger),
		newIndexCmd(logger),
		newCheckCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду проверки API.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the Relay API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := clientFn().Health()
			if err != nil {
				return err
			}

			outputFn().Fields([][2]string{
				{"Status", health.Status},
				{"Timestamp", health.Timestamp},
			}, health)
			return nil
		},
	}
}

// NewPublishCmd создаёт команду публикации сообщения.
//
// Payload берётся из --data, из --file или из stdin ("-").
func NewPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var file string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a JSON message to the consume queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}

			result, err := clientFn().PublishMessage(payload)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Fields([][2]string{
				{"Status", result.Status},
				{"Message ID", result.MessageID},
			}, result)
			out.Success(result.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read payload from file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")

	return cmd
}

// NewRejectionsCmd создаёт команду просмотра журнала отклонений.
func NewRejectionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rejections",
		Short: "List recently rejected messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rejections, err := clientFn().ListRejections(limit)
			if err != nil {
				return err
			}

			headers := []string{"MESSAGE_ID", "QUEUE", "JOB", "REQUEUED", "DLQ", "REJECTED_AT", "REASON"}
			rows := make([][]string, len(rejections))
			for i, r := range rejections {
				rows[i] = []string{
					r.MessageID,
					r.Queue,
					r.Job,
					strconv.FormatBool(r.Requeued),
					strconv.FormatBool(r.DeadLettered),
					r.RejectedAt,
					r.Reason,
				}
			}

			outputFn().Print(headers, rows, rejections)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func readPayload(stdin io.Reader, data, file string) (json.RawMessage, error) {
	var raw []byte

	switch {
	case data != "":
		raw = []byte(data)
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("payload is required: use --data or --file")
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return raw, nil
}

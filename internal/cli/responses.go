package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewResponsesCmd создаёт группу команд для собранных CAPTURE-записей.
func NewResponsesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "responses",
		Short: "Captured flow responses",
	}

	cmd.AddCommand(newResponsesListCmd(clientFn, outputFn))

	return cmd
}

func newResponsesListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var account string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.ListResponses(account, limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "CALLER", "DIGIT", "TEXT", "CAMPAIGN", "CREATED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					strconv.FormatInt(r.ID, 10),
					r.Caller,
					r.Digit,
					r.Text,
					r.CampaignID,
					r.CreatedAt,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.MarkFlagRequired("account")

	return cmd
}

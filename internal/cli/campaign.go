package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewCampaignCmd создаёт группу команд для управления кампаниями.
func NewCampaignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage broadcast campaigns",
	}

	cmd.AddCommand(
		newCampaignLaunchCmd(clientFn, outputFn),
		newCampaignListCmd(clientFn, outputFn),
		newCampaignShowCmd(clientFn, outputFn),
		newCampaignLogsCmd(clientFn, outputFn),
		newCampaignStopCmd(clientFn, outputFn),
	)

	return cmd
}

func newCampaignLaunchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var account string
	var device string
	var window string
	var targets []string
	var targetsFile string

	cmd := &cobra.Command{
		Use:   "launch NAME",
		Short: "Launch a broadcast campaign",
		Long: `Launch a broadcast campaign over the device's outbound flow.

Targets are dialed strictly one at a time, in the order given.
Each target is NUMBER[,key=value,...]; the key=value pairs become
phonebook variables of the call context.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lines := targets
			if targetsFile != "" {
				fromFile, err := readTargetLines(targetsFile)
				if err != nil {
					return err
				}
				lines = append(lines, fromFile...)
			}
			if len(lines) == 0 {
				return fmt.Errorf("at least one --target or --targets-file is required")
			}

			parsed := make([]CampaignTarget, 0, len(lines))
			for _, line := range lines {
				target, err := parseTarget(line)
				if err != nil {
					return err
				}
				parsed = append(parsed, target)
			}

			campaign, err := client.LaunchCampaign(LaunchCampaignRequest{
				AccountID:  account,
				DeviceID:   device,
				Name:       args[0],
				WindowExpr: window,
				Targets:    parsed,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Campaign launched: %s (%d targets)", campaign.ID, campaign.Targets))
			out.Print(
				[]string{"ID", "NAME", "DEVICE", "STATUS", "TARGETS", "CREATED"},
				[][]string{{campaign.ID, campaign.Name, campaign.DeviceID, campaign.Status, fmt.Sprintf("%d", campaign.Targets), campaign.CreatedAt}},
				campaign,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID (required)")
	cmd.Flags().StringVar(&device, "device", "", "Device (line) ID to dial from (required)")
	cmd.Flags().StringVar(&window, "window", "", "Calling window as a 5-field cron expression, e.g. \"* 9-16 * * 1-5\"")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "Target as NUMBER[,key=value,...] (repeatable)")
	cmd.Flags().StringVar(&targetsFile, "targets-file", "", "File with one target per line")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("device")

	return cmd
}

func newCampaignListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaigns, err := client.ListCampaigns(account)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "DEVICE", "STATUS", "WINDOW", "CREATED"}
			rows := make([][]string, len(campaigns))
			for i, c := range campaigns {
				rows[i] = []string{c.ID, c.Name, c.DeviceID, c.Status, c.WindowExpr, c.CreatedAt}
			}

			out.Print(headers, rows, campaigns)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID (required)")
	cmd.MarkFlagRequired("account")

	return cmd
}

func newCampaignShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show campaign details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaign, err := client.GetCampaign(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "DEVICE", "STATUS", "WINDOW", "CREATED"},
				[][]string{{campaign.ID, campaign.Name, campaign.DeviceID, campaign.Status, campaign.WindowExpr, campaign.CreatedAt}},
				campaign,
			)
			return nil
		},
	}
}

func newCampaignLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs CAMPAIGN_ID",
		Short: "List campaign targets in dial order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.ListCampaignLogs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "CALL_TO", "STATUS", "CALL_SID", "STARTED"}
			rows := make([][]string, len(logs))
			for i, l := range logs {
				rows[i] = []string{l.ID, l.CallTo, l.Status, l.CallSID, l.StartedAt}
			}

			out.Print(headers, rows, logs)
			return nil
		},
	}
}

func newCampaignStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaign, err := client.StopCampaign(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Campaign stopped: %s", campaign.ID))
			return nil
		},
	}
}

// parseTarget парсит строку цели: NUMBER[,key=value,...].
func parseTarget(line string) (CampaignTarget, error) {
	parts := strings.Split(line, ",")
	number := strings.TrimSpace(parts[0])
	if number == "" {
		return CampaignTarget{}, fmt.Errorf("empty target number in %q", line)
	}

	target := CampaignTarget{Number: number}
	for _, kv := range parts[1:] {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			return CampaignTarget{}, fmt.Errorf("invalid variable %q in target %q, expected key=value", kv, line)
		}
		if target.Variables == nil {
			target.Variables = make(map[string]any)
		}
		target.Variables[pair[0]] = pair[1]
	}
	return target, nil
}

// readTargetLines читает цели из файла, пропуская пустые строки
// и комментарии.
func readTargetLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return lines, nil
}

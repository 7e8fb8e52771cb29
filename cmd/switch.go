package cmd

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-switch/vigil/api"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Manage dead man's switches",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient()
	},
}

var armSwitchCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm a dead man's switch",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, _ := cmd.Flags().GetString("message")
		interval, _ := cmd.Flags().GetDuration("interval")
		resetWord, _ := cmd.Flags().GetString("reset-word")
		contact, _ := cmd.Flags().GetString("contact")

		body := api.ArmRequest{
			Interval:  interval.String(),
			Message:   msg,
			ResetWord: resetWord,
			Contact:   contact,
		}

		code, respBody, err := client.do(context.Background(), http.MethodPost, "/v1/switch", body)
		if err != nil {
			return err
		}
		dumpResponse(cmd, code, respBody, &api.ArmResult{})
		return nil
	},
}

var disarmSwitchCmd = &cobra.Command{
	Use:   "disarm [reset-word]",
	Short: "Disarm a dead man's switch by its reset word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/switch/" + url.PathEscape(args[0])

		code, respBody, err := client.do(context.Background(), http.MethodDelete, path, nil)
		if err != nil {
			return err
		}
		dumpResponse(cmd, code, respBody, &api.DeleteResult{})
		return nil
	},
}

func init() {
	registerClientFlags(switchCmd)

	armSwitchCmd.Flags().StringP("message", "m", "", "Message delivered if the switch triggers")
	armSwitchCmd.Flags().DurationP("interval", "i", 24*time.Hour, "Trigger interval (e.g. 30m, 25h)")
	armSwitchCmd.Flags().StringP("reset-word", "w", "", "Secret word that resets the switch when seen in an inbound message")
	armSwitchCmd.Flags().StringP("contact", "c", "", "Single recipient contact name. Omit to broadcast to all contacts.")
	_ = armSwitchCmd.MarkFlagRequired("message")
	_ = armSwitchCmd.MarkFlagRequired("reset-word")

	switchCmd.AddCommand(armSwitchCmd, disarmSwitchCmd)
	rootCmd.AddCommand(switchCmd)
}

package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-switch/vigil/api"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Manage scheduled messages",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient()
	},
}

var addMessageCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a new message",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		in, _ := cmd.Flags().GetDuration("in")
		recipients, _ := cmd.Flags().GetStringArray("recipients")
		jsonPayload, _ := cmd.Flags().GetBool("json-payload")

		body := api.NewMessage{
			Title:       title,
			Content:     content,
			ScheduledAt: time.Now().Add(in).Unix(),
			Recipients:  recipients,
			JSONPayload: jsonPayload,
		}

		code, respBody, err := client.do(context.Background(), http.MethodPost, "/v1/message", body)
		if err != nil {
			return err
		}
		dumpResponse(cmd, code, respBody, &api.Message{})
		return nil
	},
}

var listMessagesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pending messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, respBody, err := client.do(context.Background(), http.MethodGet, "/v1/messages", nil)
		if err != nil {
			return err
		}
		dumpResponse(cmd, code, respBody, &[]api.Message{})
		return nil
	},
}

var deleteMessagesCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete pending messages by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := api.DeleteMessagesRequest{
			IDs: args,
		}

		code, respBody, err := client.do(context.Background(), http.MethodDelete, "/v1/messages", body)
		if err != nil {
			return err
		}
		dumpResponse(cmd, code, respBody, &api.DeleteResult{})
		return nil
	},
}

func init() {
	registerClientFlags(messageCmd)

	addMessageCmd.Flags().StringP("title", "T", "", "Message title")
	addMessageCmd.Flags().StringP("content", "c", "", "Message content")
	addMessageCmd.Flags().DurationP("in", "i", time.Hour, "How far in the future to deliver (e.g. 30m, 25h)")
	addMessageCmd.Flags().StringArrayP("recipients", "r", nil, "Recipient contact names. Omit to broadcast to all contacts.")
	addMessageCmd.Flags().BoolP("json-payload", "j", false, "Deliver the message as a JSON document instead of plain text")
	_ = addMessageCmd.MarkFlagRequired("title")
	_ = addMessageCmd.MarkFlagRequired("content")

	messageCmd.AddCommand(addMessageCmd, listMessagesCmd, deleteMessagesCmd)
	rootCmd.AddCommand(messageCmd)
}

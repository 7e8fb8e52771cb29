package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vigil-switch/vigil/api"
)

var (
	apiURL       string
	apiToken     string
	outputFormat string
	useColor     bool
	client       *apiClient
)

// apiClient is a thin JSON client for the vigil API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func initClient() error {
	client = &apiClient{
		baseURL: apiURL,
		token:   apiToken,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	return nil
}

// do issues one JSON request and returns the status code and raw body.
func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// formatOutput handles conversion and writing to the command's designated output
func formatOutput(cmd *cobra.Command, data interface{}, isError bool) {
	if !useColor {
		color.NoColor = true
	} else {
		color.NoColor = false
	}

	var out string

	switch outputFormat {
	case "yaml":
		b, _ := yaml.Marshal(data)
		if useColor {
			if isError {
				out = color.RedString(string(b))
			} else {
				out = color.CyanString(string(b))
			}
		} else {
			out = string(b)
		}

	case "json":
		fallthrough
	default:
		if useColor {
			b, _ := prettyjson.Marshal(data)
			out = string(b)
		} else {
			b, _ := json.MarshalIndent(data, "", "  ")
			out = string(b)
		}
	}

	cmd.Println(out)
}

// dumpResponse handles formatting success data or API error models.
// successData should point at the type the endpoint returns; it is decoded
// from body on 2xx responses.
func dumpResponse(cmd *cobra.Command, statusCode int, body []byte, successData interface{}) {
	// Handle all successful status codes (200-299)
	if statusCode >= 200 && statusCode < 300 {
		if successData != nil && len(body) > 0 {
			if err := json.Unmarshal(body, successData); err == nil {
				formatOutput(cmd, successData, false)
				return
			}
		}
		// Success but no data (e.g., 204 No Content)
		if useColor {
			_, err := color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Success")
			if err != nil {
				cmd.PrintErrf("Error writing to stdout %v\n", err)
				return
			}
		} else {
			cmd.Println("Success")
		}
		return
	}

	// Handle Errors: Try to parse structured API error first
	var apiErr api.Error
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		formatOutput(cmd, apiErr, true)
		return
	}

	// Fallback: Print raw body or just the status code
	if len(body) > 0 {
		if useColor {
			_, _ = color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), string(body))
		} else {
			cmd.PrintErrln(string(body))
		}
	} else {
		cmd.PrintErrf("Error: Received status code %d\n", statusCode)
	}
}

// registerClientFlags attaches the shared API client flags to a command.
func registerClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&apiURL, "url", "u", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().StringVarP(&apiToken, "token", "t", "", "API bearer token")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	cmd.PersistentFlags().BoolVar(&useColor, "color", true, "Enable colorized output")
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// mnemoctl is a small operator CLI for a running memoryd instance. It talks
// to the HTTP API only; it never touches the backing stores directly.

var serverAddr string

func main() {
	root := &cobra.Command{
		Use:   "mnemoctl",
		Short: "Operator CLI for the memory service",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8085", "memoryd base URL")

	root.AddCommand(statsCmd(), clearSessionCmd(), clearFactsCmd(), setGoalCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "stats <session-id>",
		Short: "Show what the memory tiers hold for a session/user pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/v1/memory/sessions/%s/stats?user_id=%s", serverAddr, args[0], userID)
			return do(http.MethodGet, url, nil)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func clearSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-session <session-id>",
		Short: "Drop a session's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(http.MethodDelete, fmt.Sprintf("%s/api/v1/memory/sessions/%s", serverAddr, args[0]), nil)
		},
	}
}

func clearFactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-facts <user-id>",
		Short: "Drop every long-term fact stored for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(http.MethodDelete, fmt.Sprintf("%s/api/v1/memory/users/%s/facts", serverAddr, args[0]), nil)
		},
	}
}

func setGoalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-goal <user-id> <key> <value>",
		Short: "Store or update a user goal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"key": args[1], "value": args[2]}
			return do(http.MethodPut, fmt.Sprintf("%s/api/v1/memory/users/%s/goals", serverAddr, args[0]), body)
		},
	}
}

func validateCmd() *cobra.Command {
	var toolResults string
	var correct bool
	cmd := &cobra.Command{
		Use:   "validate <text>",
		Short: "Check numeric claims in a response against tool results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tools map[string]interface{}
			if toolResults != "" {
				if err := json.Unmarshal([]byte(toolResults), &tools); err != nil {
					return fmt.Errorf("--tools must be a JSON object: %w", err)
				}
			}
			body := map[string]interface{}{
				"text":         args[0],
				"tool_results": tools,
				"correct":      correct,
			}
			return do(http.MethodPost, serverAddr+"/api/v1/validate", body)
		},
	}
	cmd.Flags().StringVar(&toolResults, "tools", "", `tool results as JSON, e.g. '{"heart_rate": 87}'`)
	cmd.Flags().BoolVar(&correct, "correct", false, "rewrite unmatched claims in the output")
	return cmd
}

func do(method, url string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, string(raw))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

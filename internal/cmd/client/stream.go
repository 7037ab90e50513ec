// Package client contains Cobra CLI commands for Pulse.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewStreamCommand constructs the `stream` command group and subcommands.
func NewStreamCommand(baseURL BaseURLFunc) *cobra.Command {
	streamCmd := &cobra.Command{Use: "stream", Short: "Stream operations"}

	streamCmd.AddCommand(
		newStreamCreateCommand(baseURL),
		newStreamListCommand(baseURL),
		newStreamStatsCommand(baseURL),
		newStreamAppendCommand(baseURL),
		newStreamQueryCommand(baseURL),
		newStreamTailCommand(baseURL),
		newStreamWatchCommand(baseURL),
	)

	return streamCmd
}

// newStreamCreateCommand constructs the `stream create` subcommand.
func newStreamCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stream with an optional capacity override",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			capacity, _ := cmd.Flags().GetInt("capacity")
			expr, _ := cmd.Flags().GetString("expr")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}
			body := map[string]any{"stream": st, "capacity": capacity}
			if expr != "" {
				body["filters"] = map[string]any{"expr": expr}
			}
			if _, err := apiPost(cmd.Context(), baseURL()+"/v1/streams/create", body); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	createCmd.Flags().String("stream", "", "Stream name")
	createCmd.Flags().Int("capacity", 0, "Ring buffer capacity override (0 = server default)")
	createCmd.Flags().String("expr", "", "Default CEL filter applied to subscribers")
	return createCmd
}

// newStreamListCommand constructs the `stream list` subcommand.
func newStreamListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List streams with their stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := apiGet(cmd.Context(), baseURL()+"/v1/streams")
			if err != nil {
				return err
			}
			return printIndented(cmd, body)
		},
	}
}

// newStreamStatsCommand constructs the `stream stats` subcommand.
func newStreamStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Get one stream's buffer stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}
			body, err := apiGet(cmd.Context(), baseURL()+"/v1/streams/stats?stream="+url.QueryEscape(st))
			if err != nil {
				return err
			}
			return printIndented(cmd, body)
		},
	}
	statsCmd.Flags().String("stream", "", "Stream name")
	return statsCmd
}

// newStreamAppendCommand constructs the `stream append` subcommand.
func newStreamAppendCommand(baseURL BaseURLFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append a data point to a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			value, _ := cmd.Flags().GetString("value")
			ts, _ := cmd.Flags().GetString("timestamp")
			rawMeta, _ := cmd.Flags().GetStringArray("metadata")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}
			meta, err := parseMetadata(rawMeta)
			if err != nil {
				return err
			}
			body := map[string]any{"stream": st, "value": parseValue(value)}
			if ts != "" {
				body["timestamp"] = ts
			}
			if len(meta) > 0 {
				body["metadata"] = meta
			}
			if _, err := apiPost(cmd.Context(), baseURL()+"/v1/streams/append", body); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	appendCmd.Flags().String("stream", "", "Stream name")
	appendCmd.Flags().String("value", "", "Point value; parsed as JSON, else taken as a string")
	appendCmd.Flags().String("timestamp", "", "Point timestamp: RFC3339 or unix ms (default: server now)")
	appendCmd.Flags().StringArray("metadata", []string{}, "Point metadata key=value (repeat)")
	return appendCmd
}

// newStreamQueryCommand constructs the `stream query` subcommand.
func newStreamQueryCommand(baseURL BaseURLFunc) *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Read a time window of a stream's buffer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			limit, _ := cmd.Flags().GetInt("limit")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}
			q := url.Values{}
			q.Set("stream", st)
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			body, err := apiGet(cmd.Context(), baseURL()+"/v1/streams/query?"+q.Encode())
			if err != nil {
				return err
			}
			return printIndented(cmd, body)
		},
	}
	queryCmd.Flags().String("stream", "", "Stream name")
	queryCmd.Flags().String("from", "", "Window start: RFC3339 or unix ms")
	queryCmd.Flags().String("to", "", "Window end: RFC3339 or unix ms")
	queryCmd.Flags().Int("limit", 0, "Max points, newest kept (0 = all)")
	return queryCmd
}

// newStreamTailCommand constructs the `stream tail` subcommand. It consumes
// the server's SSE endpoint, so it sees the same priming push and catch-up
// cadence as any subscriber.
func newStreamTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail a stream over Server-Sent Events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			expr, _ := cmd.Flags().GetString("expr")
			intervalMs, _ := cmd.Flags().GetInt("interval-ms")
			limit, _ := cmd.Flags().GetInt("limit")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}
			q := url.Values{}
			q.Set("stream", st)
			if expr != "" {
				q.Set("expr", expr)
			}
			if intervalMs > 0 {
				q.Set("interval_ms", fmt.Sprint(intervalMs))
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/streams/tail?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("http error: %s", resp.Status)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			sc := bufio.NewScanner(resp.Body)
			n := 0
			for sc.Scan() {
				line := sc.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var v any
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v); err != nil {
					continue
				}
				_ = enc.Encode(v)
				n++
				if limit > 0 && n >= limit {
					return nil
				}
			}
			if err := sc.Err(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
	tailCmd.Flags().String("stream", "", "Stream name")
	tailCmd.Flags().String("expr", "", "CEL filter (server-side)")
	tailCmd.Flags().Int("interval-ms", 0, "Catch-up push cadence (0 = server default)")
	tailCmd.Flags().Int("limit", 0, "Stop after N messages (0 = infinite)")
	return tailCmd
}

// newStreamWatchCommand constructs the `stream watch` subcommand. Unlike
// tail, it speaks the full WebSocket protocol: subscribe, pushes, pings.
func newStreamWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to a stream over WebSocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _ := cmd.Flags().GetString("stream")
			expr, _ := cmd.Flags().GetString("expr")
			intervalMs, _ := cmd.Flags().GetInt("interval-ms")
			limit, _ := cmd.Flags().GetInt("limit")
			if st == "" {
				return fmt.Errorf("stream name is required")
			}

			ctx := cmd.Context()
			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL(baseURL()), nil)
			if err != nil {
				return err
			}
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			defer func() { _ = conn.Close() }()
			// Close the socket on ctx cancellation to unblock ReadMessage.
			stop := make(chan struct{})
			defer close(stop)
			go func() {
				select {
				case <-ctx.Done():
					_ = conn.Close()
				case <-stop:
				}
			}()

			sub := map[string]any{"type": "subscribe", "streamId": st}
			if intervalMs > 0 {
				sub["intervalMs"] = intervalMs
			}
			if expr != "" {
				sub["filters"] = map[string]any{"expr": expr}
			}
			if err := conn.WriteJSON(sub); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for {
				var v map[string]any
				if err := conn.ReadJSON(&v); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if t, _ := v["type"].(string); t == "error" {
					return fmt.Errorf("server error: %v", v["message"])
				}
				_ = enc.Encode(v)
				n++
				if limit > 0 && n >= limit {
					return nil
				}
			}
		},
	}
	watchCmd.Flags().String("stream", "", "Stream name")
	watchCmd.Flags().String("expr", "", "CEL filter (server-side)")
	watchCmd.Flags().Int("interval-ms", 0, "Catch-up push cadence (0 = server default)")
	watchCmd.Flags().Int("limit", 0, "Stop after N messages (0 = infinite)")
	return watchCmd
}

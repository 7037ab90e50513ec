package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// apiGet fetches url and returns the body, failing on non-2xx statuses.
func apiGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, httpError(resp.Status, body)
	}
	return body, nil
}

// apiPost sends body as JSON to url and returns the response body, failing
// on non-2xx statuses.
func apiPost(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, httpError(resp.Status, out)
	}
	return out, nil
}

// httpError surfaces the server's error field when the body carries one.
func httpError(status string, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("http error: %s: %s", status, e.Error)
	}
	return fmt.Errorf("http error: %s", status)
}

// wsURL derives the WebSocket endpoint from an HTTP base URL.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/v1/ws"
}

// parseValue interprets s as JSON when possible, else a plain string, so
// `--value 21.5` appends a number and `--value warm` appends a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// parseMetadata converts repeated key=value flags into a map.
func parseMetadata(raw []string) (map[string]string, error) {
	meta := map[string]string{}
	for _, kv := range raw {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --metadata, expected key=value: %s", kv)
		}
		meta[strings.TrimSpace(parts[0])] = parts[1]
	}
	return meta, nil
}

// printIndented re-encodes a JSON body with indentation to stdout.
func printIndented(cmd *cobra.Command, body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		_, werr := cmd.OutOrStdout().Write(body)
		return werr
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

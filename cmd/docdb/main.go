// Command docdb is an interactive client for docdb-server: a readline
// shell that sends filter documents to /query, /count and /explain and
// renders the JSON responses.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

type queryRequest struct {
	Namespace string                 `json:"namespace"`
	Filter    map[string]interface{} `json:"filter"`
}

type countRequest = queryRequest
type explainRequest = queryRequest

type queryResponse struct {
	Documents []map[string]interface{} `json:"documents"`
	Cursor    string                    `json:"cursor,omitempty"`
	Exhausted bool                      `json:"exhausted"`
	LatencyMS int64                     `json:"latency_ms"`
}

type countResponse struct {
	Count     int64 `json:"count"`
	LatencyMS int64 `json:"latency_ms"`
}

type explainResponse struct {
	Plan      string `json:"plan"`
	LatencyMS int64  `json:"latency_ms"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "docdb-server URL")
	apiKey := flag.String("api-key", "", "X-API-Key header value")
	flag.Parse()

	fmt.Println("docdb CLI - client for docdb-server")
	fmt.Printf("Connected to: %s\n", *serverURL)
	fmt.Println("Commands: query <ns> <filter-json> | count <ns> <filter-json> | explain <ns> <filter-json> | exit")
	fmt.Println()

	client := &http.Client{}

	rl, err := readline.New("docdb> ")
	if err != nil {
		fmt.Printf("error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				break
			}
			fmt.Printf("error reading input: %v\n", err)
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := dispatch(client, *serverURL, *apiKey, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
		fmt.Println()
	}

	fmt.Println("goodbye")
}

func dispatch(client *http.Client, serverURL, apiKey, line string) error {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return fmt.Errorf("usage: <query|count|explain> <namespace> [filter-json]")
	}
	cmd, ns := fields[0], fields[1]
	filterJSON := "{}"
	if len(fields) == 3 {
		filterJSON = fields[2]
	}

	var filter map[string]interface{}
	if err := json.Unmarshal([]byte(filterJSON), &filter); err != nil {
		return fmt.Errorf("invalid filter JSON: %w", err)
	}

	switch cmd {
	case "query":
		return runQuery(client, serverURL, apiKey, ns, filter)
	case "count":
		return runCount(client, serverURL, apiKey, ns, filter)
	case "explain":
		return runExplain(client, serverURL, apiKey, ns, filter)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runQuery(client *http.Client, serverURL, apiKey, ns string, filter map[string]interface{}) error {
	var resp queryResponse
	if err := post(client, serverURL+"/query", apiKey, queryRequest{Namespace: ns, Filter: filter}, &resp); err != nil {
		return err
	}
	for _, doc := range resp.Documents {
		b, _ := json.Marshal(doc)
		fmt.Println(string(b))
	}
	fmt.Printf("%d documents (%d ms)", len(resp.Documents), resp.LatencyMS)
	if !resp.Exhausted {
		fmt.Printf(", more available via cursor %s", resp.Cursor)
	}
	fmt.Println()
	return nil
}

func runCount(client *http.Client, serverURL, apiKey, ns string, filter map[string]interface{}) error {
	var resp countResponse
	if err := post(client, serverURL+"/count", apiKey, countRequest{Namespace: ns, Filter: filter}, &resp); err != nil {
		return err
	}
	fmt.Printf("%d (%d ms)\n", resp.Count, resp.LatencyMS)
	return nil
}

func runExplain(client *http.Client, serverURL, apiKey, ns string, filter map[string]interface{}) error {
	var resp explainResponse
	if err := post(client, serverURL+"/explain", apiKey, explainRequest{Namespace: ns, Filter: filter}, &resp); err != nil {
		return err
	}
	fmt.Println(resp.Plan)
	return nil
}

func post(client *http.Client, url, apiKey string, reqBody, respBody interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("server error: %s - %s", errResp.Error.Code, errResp.Error.Message)
	}

	return json.Unmarshal(body, respBody)
}

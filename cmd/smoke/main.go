package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke run against a live server (and its Memgraph + LLM
// backends): ingest, search, traverse, sleep, dry-run included.

var baseURL = "http://localhost:8080"

func main() {
	if v := os.Getenv("SMOKE_BASE_URL"); v != "" {
		baseURL = v
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting smoke run...")

	groupID := fmt.Sprintf("smoke-%d", time.Now().Unix())

	fmt.Println("1. Ingesting episodes...")
	episodes := []string{
		"Alice is a software engineer at Acme Corp.",
		"Alice lives in San Francisco and loves hiking.",
		"Acme Corp was founded by Bob Stone in 2003.",
	}
	for _, content := range episodes {
		ok := sendRequest("POST", "/episodes", map[string]interface{}{
			"group_id": groupID,
			"content":  content,
		})
		if !ok {
			fmt.Println("FAILED: ingest episode")
			os.Exit(1)
		}
	}
	fmt.Println("PASSED: ingest episodes")

	fmt.Println("2. Searching...")
	if !sendRequest("POST", "/search", map[string]interface{}{
		"group_id": groupID,
		"query":    "Who is Alice?",
	}) {
		fmt.Println("FAILED: search")
		os.Exit(1)
	}
	fmt.Println("PASSED: search")

	fmt.Println("3. Traversing from Alice...")
	if !sendRequest("POST", "/traverse", map[string]interface{}{
		"group_id":          groupID,
		"start_entity_name": "Alice",
		"max_hops":          2,
	}) {
		fmt.Println("FAILED: traverse")
		os.Exit(1)
	}
	fmt.Println("PASSED: traverse")

	fmt.Println("4. Listing recent episodes...")
	if !sendRequest("GET", "/episodes/recent?group_id="+groupID, nil) {
		fmt.Println("FAILED: recent episodes")
		os.Exit(1)
	}
	fmt.Println("PASSED: recent episodes")

	fmt.Println("5. Dry-run sleep cycle...")
	if !sendRequest("POST", "/sleep", map[string]interface{}{
		"group_id": groupID,
		"options": map[string]interface{}{
			"consolidate": true,
			"prune":       true,
			"communities": true,
			"dry_run":     true,
		},
	}) {
		fmt.Println("FAILED: sleep dry run")
		os.Exit(1)
	}
	fmt.Println("PASSED: sleep dry run")

	fmt.Println("Smoke run complete.")
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	return true
}

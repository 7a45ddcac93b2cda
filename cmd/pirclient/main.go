// Command pirclient is a demo client for pirserver: it fetches a lane's
// shape from /crs/{lane}, builds one query, posts it, and extracts the
// retrieved record.
//
// Only the Baseline and Seeded variants are exercised here, both with
// OnePacking responses. The Switched variant and InspiRING packing are
// fully implemented and tested in protocol/rlwescheme/lifecycle, but
// driving them from an untrusted client requires that client's own
// automorphism key-switch matrices to already be present in the lane's
// CRS — provisioning those per-client is out of scope for
// this demo, which assumes one shared CRS per lane (see shard.CrsMetadata).
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"ethpir/pirparams"
	"ethpir/protocol"
	"ethpir/rlwescheme"
	"ethpir/telemetry"
)

type crsResponse struct {
	Lane        string `json:"lane"`
	EntryCount  int    `json:"entry_count"`
	ShardConfig struct {
		EntryWidth  int `json:"entry_width"`
		RecordWidth int `json:"record_width"`
	} `json:"shard_config"`
}

type queryRequestBody struct {
	Query protocol.QueryEnvelope `json:"query"`
}

type queryResponseBody struct {
	Response protocol.Response `json:"response"`
}

type errorBody struct {
	Code string `json:"code"`
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8088", "pirserver base URL")
	lane := flag.String("lane", "", "lane name to query")
	seeded := flag.Bool("seeded", false, "use the seeded query variant instead of baseline")
	target := flag.Int("target", -1, "record index to retrieve; prompts interactively if omitted")
	flag.Parse()

	log := telemetry.With("pirclient")
	if *lane == "" {
		fmt.Fprintln(os.Stderr, "pirclient: -lane is required")
		os.Exit(1)
	}

	shape, err := fetchLaneShape(*addr, *lane)
	if err != nil {
		log.WithError(err).Fatal("fetching lane shape")
	}

	idx := *target
	if idx < 0 {
		idx = promptForIndex(shape.EntryCount)
	}

	box, err := rlwescheme.NewBox(pirparams.Reference)
	if err != nil {
		log.WithError(err).Fatal("building client key pair")
	}
	grid, err := protocol.NewGrid(shape.EntryCount, shape.ShardConfig.RecordWidth)
	if err != nil {
		log.WithError(err).Fatal("building grid")
	}

	variant := protocol.Baseline
	if *seeded {
		variant = protocol.Seeded
	}
	env, state, err := protocol.QueryGen(box, grid, idx, variant, protocol.OnePacking)
	if err != nil {
		log.WithError(err).Fatal("generating query")
	}

	resp, err := postQuery(*addr, *lane, *seeded, env)
	if err != nil {
		log.WithError(err).Fatal("querying server")
	}

	vals, err := protocol.Extract(pirparams.Reference, state, resp)
	if err != nil {
		log.WithError(err).Fatal("extracting record")
	}
	fmt.Printf("record %d: %v\n", idx, vals)
}

func fetchLaneShape(addr, lane string) (*crsResponse, error) {
	resp, err := http.Get(strings.TrimRight(addr, "/") + "/crs/" + lane)
	if err != nil {
		return nil, fmt.Errorf("pirclient: fetching lane shape: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pirclient: fetching lane shape: server returned %s", resp.Status)
	}
	var shape crsResponse
	if err := json.NewDecoder(resp.Body).Decode(&shape); err != nil {
		return nil, fmt.Errorf("pirclient: decoding lane shape: %w", err)
	}
	return &shape, nil
}

func postQuery(addr, lane string, seeded bool, env *protocol.QueryEnvelope) (*protocol.Response, error) {
	path := "/query/" + lane
	if seeded {
		path += "/seeded"
	}
	body, err := json.Marshal(queryRequestBody{Query: *env})
	if err != nil {
		return nil, fmt.Errorf("pirclient: encoding query: %w", err)
	}
	resp, err := http.Post(strings.TrimRight(addr, "/")+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pirclient: sending query: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pirclient: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return nil, fmt.Errorf("pirclient: server rejected query (%s): %s", resp.Status, eb.Code)
	}
	var qr queryResponseBody
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, fmt.Errorf("pirclient: decoding response: %w", err)
	}
	return &qr.Response, nil
}

func promptForIndex(entryCount int) int {
	fmt.Printf("lane holds %d records, which index do you want? ", entryCount)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		fmt.Println("not a number, defaulting to 0")
		return 0
	}
	return idx
}

// Package main is the entrypoint for the invocation gateway (binary name "gateway").
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/morezero/invocation-gateway/internal/config"
	"github.com/morezero/invocation-gateway/internal/server"
	"github.com/morezero/invocation-gateway/pkg/commsutil"
	"github.com/morezero/invocation-gateway/pkg/dispatcher"
	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/retrieval"
)

const usage = `Usage: gateway [command]
       gateway serve                                   Start the gateway (NATS, HTTP API, metrics).
       gateway providers                               Print the built-in providers and their operations.
       gateway invoke <client> <method> [params-json]  Submit an invocation to a running gateway.
                      [--sync] [--id=<correlation-id>] [--region=<region>]
       gateway result <correlation-id> [--clear]       Fetch a stored outcome from a running gateway.

Commands:
  serve      (default) Start the invocation gateway.
  providers  List providers without connecting to anything.
  invoke     Send an invoke request; prints the correlation id. Use --sync to record the outcome.
  result     Send a getResult request; prints the outcome or the not-found report.

Environment: COMMS_URL (default nats://127.0.0.1:4222), GATEWAY_SUBJECT (default gateway.v1),
PROVIDER_ACCESS_KEY_ID, PROVIDER_SECRET_ACCESS_KEY, PROVIDER_REGION (default us-east-1),
GATEWAY_HTTP_ADDR (overrides HTTP_PORT), HTTP_PORT (default 8080, listens on :8080).
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "providers":
		if err := printJSON(server.DescribeBuiltins()); err != nil {
			log.Fatalf("gateway providers: %v", err)
		}
		return
	case "invoke":
		req, err := parseInvokeArgs(args[1:])
		if err != nil {
			log.Fatalf("gateway invoke: %v", err)
		}
		if err := runRequest("invoke", req); err != nil {
			log.Fatalf("gateway invoke: %v", err)
		}
		return
	case "result":
		input, err := parseResultArgs(args[1:])
		if err != nil {
			log.Fatalf("gateway result: %v", err)
		}
		if err := runRequest("getResult", input); err != nil {
			log.Fatalf("gateway result: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

// parseInvokeArgs reads `<client> <method> [params-json] [--sync] [--id=..] [--region=..]`.
func parseInvokeArgs(args []string) (*invocation.Request, error) {
	req := &invocation.Request{}
	var positional []string
	for _, a := range args {
		switch {
		case a == "--sync":
			req.Sync = true
		case strings.HasPrefix(a, "--id="):
			req.CorrelationID = strings.TrimPrefix(a, "--id=")
		case strings.HasPrefix(a, "--region="):
			req.Region = strings.TrimPrefix(a, "--region=")
		case strings.HasPrefix(a, "--"):
			return nil, fmt.Errorf("unknown flag %q", a)
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) < 2 || len(positional) > 3 {
		return nil, fmt.Errorf("require <client> <method> [params-json]")
	}
	req.Client, req.Method = positional[0], positional[1]
	if len(positional) == 3 {
		if err := commsutil.DecodeStrict([]byte(positional[2]), &req.Params); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}
	return req, nil
}

// parseResultArgs reads `<correlation-id> [--clear]`.
func parseResultArgs(args []string) (*retrieval.GetResultInput, error) {
	input := &retrieval.GetResultInput{}
	for _, a := range args {
		switch {
		case a == "--clear":
			input.Clear = true
		case strings.HasPrefix(a, "--"):
			return nil, fmt.Errorf("unknown flag %q", a)
		case input.CorrelationID == "":
			input.CorrelationID = a
		default:
			return nil, fmt.Errorf("unexpected argument %q", a)
		}
	}
	if input.CorrelationID == "" {
		return nil, fmt.Errorf("require <correlation-id>")
	}
	return input, nil
}

// runRequest sends one gateway request over NATS and prints the result.
func runRequest(method string, params interface{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForClient(); err != nil {
		return err
	}

	raw, err := commsutil.EncodePayload(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	data, err := commsutil.EncodePayload(&dispatcher.GatewayRequest{
		ID:     method + "-cli",
		Method: method,
		Params: raw,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer nc.Close()

	msg, err := nc.Request(cfg.GatewaySubject, data, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("request %s: %w", cfg.GatewaySubject, err)
	}

	result, err := decodeResponse(msg.Data)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// decodeResponse unwraps a gateway response, turning ok=false into an error.
func decodeResponse(data []byte) (interface{}, error) {
	var resp dispatcher.GatewayResponse
	if err := commsutil.DecodePayload(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.Ok {
		if resp.Error == nil {
			return nil, fmt.Errorf("gateway rejected request %q without error details", resp.ID)
		}
		return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

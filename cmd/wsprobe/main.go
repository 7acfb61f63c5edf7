// wsprobe connects to a running relay and plays one side of the protocol,
// printing every frame to the console.
//
// As a connector it registers, reports its terminal link as up, and answers
// trade commands with synthetic results. As a client it prints status
// snapshots and can fire a single trade command.
//
// Usage:
//
//	go run ./cmd/wsprobe --mode connector --url ws://localhost:8080 --token T --connection-id conn-1
//	go run ./cmd/wsprobe --mode client --url ws://localhost:8080 --token T --buy EURUSD --connection-id conn-1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradedeck/relay/internal/protocol"
)

func main() {
	mode := flag.String("mode", "client", "connector or client")
	baseURL := flag.String("url", "ws://localhost:8080", "relay base URL")
	token := flag.String("token", "", "auth token")
	connectionID := flag.String("connection-id", "", "connection id (connector mode, or target of --buy)")
	broker := flag.String("broker", "wsprobe", "broker name to register (connector mode)")
	buy := flag.String("buy", "", "symbol to send one BUY command for (client mode)")
	verbose := flag.Bool("verbose", false, "print full frame JSON indented")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *token == "" {
		logger.Error("--token is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var err error
	switch *mode {
	case "connector":
		if *connectionID == "" {
			logger.Error("--connection-id is required in connector mode")
			os.Exit(1)
		}
		err = runConnector(ctx, logger, *baseURL, *token, *connectionID, *broker, *verbose)
	case "client":
		err = runClient(ctx, logger, *baseURL, *token, *connectionID, *buy, *verbose)
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("probe failed", "error", err)
		os.Exit(1)
	}
}

func dial(ctx context.Context, baseURL, path string, query url.Values) (*websocket.Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	u.Path = path
	u.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.String(), err)
	}
	return conn, nil
}

func runConnector(ctx context.Context, logger *slog.Logger, baseURL, token, connectionID, broker string, verbose bool) error {
	conn, err := dial(ctx, baseURL, "/api/ws/connector", url.Values{
		"token":         {token},
		"connection_id": {connectionID},
		"broker":        {broker},
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connector connected", "connection_id", connectionID)

	// Report the terminal link as up so dashboards see mt5_connected.
	status, _ := json.Marshal(protocol.StatusUpdate{
		Type:         protocol.TypeStatus,
		MT5Connected: true,
	})
	if err := conn.WriteMessage(websocket.TextMessage, status); err != nil {
		return fmt.Errorf("sending status: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading: %w", err)
		}
		printFrame(logger, "recv", data, verbose)

		msgType, err := protocol.MessageType(data)
		if err != nil {
			continue
		}
		if msgType != protocol.TypeTradeOpen && msgType != protocol.TypeTradeClose {
			continue
		}

		// Answer with a synthetic fill so the client side can be exercised
		// end to end without a real terminal.
		var cmd struct {
			RequestID string `json:"request_id"`
		}
		json.Unmarshal(data, &cmd)

		result, _ := json.Marshal(map[string]any{
			"type":       "TRADE_RESULT",
			"request_id": cmd.RequestID,
			"success":    true,
			"ticket":     100000 + len(cmd.RequestID),
		})
		if err := conn.WriteMessage(websocket.TextMessage, result); err != nil {
			return fmt.Errorf("sending result: %w", err)
		}
		printFrame(logger, "sent", result, verbose)
	}
}

func runClient(ctx context.Context, logger *slog.Logger, baseURL, token, connectionID, buy string, verbose bool) error {
	conn, err := dial(ctx, baseURL, "/api/ws/client", url.Values{
		"token": {token},
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("client connected")

	if buy != "" {
		if connectionID == "" {
			return fmt.Errorf("--buy requires --connection-id")
		}
		cmd, _ := json.Marshal(protocol.TradeCommand{
			Type:         protocol.TypeTradeCommand,
			CommandID:    uuid.NewString(),
			ConnectionID: connectionID,
			Action:       protocol.ActionBuy,
			Symbol:       buy,
			Volume:       0.01,
		})
		if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
			return fmt.Errorf("sending command: %w", err)
		}
		printFrame(logger, "sent", cmd, verbose)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading: %w", err)
		}
		printFrame(logger, "recv", data, verbose)
	}
}

func printFrame(logger *slog.Logger, dir string, data []byte, verbose bool) {
	if verbose {
		var buf map[string]any
		if json.Unmarshal(data, &buf) == nil {
			pretty, _ := json.MarshalIndent(buf, "", "  ")
			fmt.Printf("%s:\n%s\n", dir, pretty)
			return
		}
	}
	msgType, err := protocol.MessageType(data)
	if err != nil {
		msgType = "?"
	}
	logger.Info(dir, "type", msgType, "bytes", len(data))
}

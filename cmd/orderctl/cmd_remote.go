// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lapaisee/orderdesk/services/orders"
	"github.com/lapaisee/orderdesk/services/orders/pipeline"
)

const remoteTimeout = 60 * time.Second

func newOrderCmd() *cobra.Command {
	var messageID string
	cmd := &cobra.Command{
		Use:   "order <message>",
		Short: "Send a message to the order desk server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := joinArgs(args)
			if err != nil {
				return err
			}
			if messageID == "" {
				messageID = uuid.NewString()
			}

			var resp orders.MessageResponse
			req := orders.MessageRequest{MessageID: messageID, Text: text}
			if err := callServer(cmd.Context(), http.MethodPost, "/v1/orders/messages", req, &resp); err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				return p.JSON(resp)
			}
			if resp.Acknowledgement != "" {
				p.Note(resp.Acknowledgement)
			}
			p.Verdicts(resp.Verdicts)
			p.Line("")
			p.Line(resp.Reply)
			note := "responder: " + resp.Responder
			if resp.Replayed {
				note += " (replayed)"
			}
			p.Note(note)
			return nil
		},
	}
	cmd.Flags().StringVar(&messageID, "message-id", "", "Message ID for duplicate suppression (default: random)")
	return cmd
}

func newStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stock <product>",
		Short: "List catalog entries matching a product with stock and price",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			var res pipeline.StockResult
			path := "/v1/orders/stock?product=" + url.QueryEscape(query)
			if err := callServer(cmd.Context(), http.MethodGet, path, nil, &res); err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				return p.JSON(res)
			}
			p.Line(res.Reply)
			return nil
		},
	}
}

// callServer sends body as JSON and decodes the reply into out. Error
// replies are turned into errors carrying the server's code.
func callServer(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(serverURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(orders.HeaderUserID, userID)
	}
	if username != "" {
		req.Header.Set(orders.HeaderUsername, username)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("order desk unreachable at %s: %w", serverURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr orders.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("order desk returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

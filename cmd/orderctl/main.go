// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orderctl is the order desk command line tool.
//
// Local commands run the extraction and stock check in process:
//
//	orderctl parse "2 fûts de jonquille et 3 cartons de pointe"
//	orderctl check --catalog data/catalog.json "2 fûts de jonquille"
//
// Remote commands talk to a running orderdesk server:
//
//	orderctl order --server http://localhost:8088 --user 42 "2 fûts de jonquille"
//	orderctl stock jonquille
//
// Catalog import from the shop, configured through the environment:
//
//	WOOCOMMERCE_URL=https://shop.example.ch WOOCOMMERCE_KEY=ck_... WOOCOMMERCE_SECRET=cs_... orderctl sync
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Flag values shared by the commands.
var (
	serverURL  string
	userID     string
	username   string
	jsonOutput bool
	envFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Order desk command line tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("ORDERDESK_URL", "http://localhost:8088"), "Order desk server base URL")
	root.PersistentFlags().StringVar(&userID, "user", os.Getenv("ORDERDESK_USER_ID"), "Caller identity sent as X-User-ID")
	root.PersistentFlags().StringVar(&username, "username", "", "Caller name sent as X-Username")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of formatted text")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded outside production")

	root.AddCommand(
		newParseCmd(),
		newCheckCmd(),
		newOrderCmd(),
		newStockCmd(),
		newSyncCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func joinArgs(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("message text is required")
	}
	return text, nil
}

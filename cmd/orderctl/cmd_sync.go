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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lapaisee/orderdesk/services/orders/bootstrap"
	"github.com/lapaisee/orderdesk/services/orders/config"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import the shop catalog into every configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadServiceConfig()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

			ctx := cmd.Context()
			lex, err := lexicon.Load()
			if err != nil {
				return err
			}
			cat, err := bootstrap.OpenCatalog(ctx, cfg.Catalog, lex, logger)
			if err != nil {
				return err
			}
			defer cat.Close()

			syncer, err := bootstrap.NewSyncer(cfg.Sync, lex, cat, logger)
			if err != nil {
				return err
			}
			_, report, runErr := syncer.Run(ctx)

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				if err := p.JSON(report); err != nil {
					return err
				}
				return runErr
			}
			p.Title(fmt.Sprintf("%d product(s) synced in %s", report.Products, report.Duration.Round(time.Millisecond)))
			if len(report.Sinks) > 0 {
				p.Line("written: " + strings.Join(report.Sinks, ", "))
			}
			if len(report.Failed) > 0 {
				p.Line("failed: " + strings.Join(report.Failed, ", "))
			}
			return runErr
		},
	}
}

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

	"github.com/spf13/cobra"

	"github.com/lapaisee/orderdesk/services/orders/bootstrap"
	"github.com/lapaisee/orderdesk/services/orders/config"
	"github.com/lapaisee/orderdesk/services/orders/extract"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/providers"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <message>",
		Short: "Extract the requested items from a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := joinArgs(args)
			if err != nil {
				return err
			}
			lex, err := lexicon.Load()
			if err != nil {
				return err
			}
			patterns, err := lex.CompilePatterns()
			if err != nil {
				return err
			}
			order := extract.New(lex, patterns, nil).Extract(text)

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				return p.JSON(order)
			}
			p.Order(order)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		catalogFile string
		locale      string
		semantic    bool
		generative  bool
	)
	cmd := &cobra.Command{
		Use:   "check <message>",
		Short: "Run the full pipeline locally against a catalog file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := joinArgs(args)
			if err != nil {
				return err
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			cfg := config.DefaultServiceConfig()
			cfg.Locale = locale
			cfg.Catalog.File = catalogFile
			cfg.Catalog.Semantic = semantic
			if generative {
				provider, err := providers.LoadProviderConfig(providers.RoleResponder, config.DefaultResponderModel)
				if err != nil {
					return err
				}
				cfg.Responder.Provider = provider
			} else {
				cfg.Responder.Provider = providers.ProviderConfig{Provider: providers.ProviderNone}
			}

			ctx := cmd.Context()
			lex, err := lexicon.Load()
			if err != nil {
				return err
			}
			cat, err := bootstrap.OpenCatalog(ctx, cfg.Catalog, lex, nil)
			if err != nil {
				return err
			}
			defer cat.Close()
			if _, err := cat.Refresh(ctx); err != nil {
				return err
			}

			gen, err := bootstrap.NewResponder(cfg.Responder, lex.Phrasebook(cfg.Locale), nil)
			if err != nil {
				return fmt.Errorf("generative responder: %w", err)
			}
			pl, err := bootstrap.NewPipeline(cfg, lex, cat.Store, gen, nil)
			if err != nil {
				return err
			}

			res := pl.Run(ctx, text)
			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				return p.JSON(res)
			}
			p.Order(res.Order)
			p.Verdicts(res.Verdicts)
			p.Line("")
			p.Line(res.Reply)
			p.Note("responder: " + res.Responder)
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "data/catalog.json", "Catalog snapshot file")
	cmd.Flags().StringVar(&locale, "locale", lexicon.DefaultLocale, "Reply phrasebook")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Rank with embeddings as well as keywords")
	cmd.Flags().BoolVar(&generative, "generative", false, "Phrase the reply with the configured chat model")
	return cmd
}

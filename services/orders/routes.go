// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orders

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all order desk routes with the router.
//
// Description:
//
//	Registers all /v1/orders/* endpoints with the given Gin router group.
//	Health endpoints are public; everything else passes the access policy.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/orders/messages - Process a customer message
//	POST /v1/orders/parse - Extract an order without checking stock
//	GET  /v1/orders/stock?product= - List matching products with stock
//	GET  /v1/orders/help - Usage text (?topic=start for the welcome text)
//	GET  /v1/orders/whoami - Echo the caller identity
//	POST /v1/orders/catalog/reload - Refresh the catalog
//
// Health Endpoints:
//
//	GET  /v1/orders/health - Health check
//	GET  /v1/orders/ready - Readiness check
//
// Example:
//
//	handlers := orders.NewHandlers(orders.NewService(p))
//	v1 := router.Group("/v1")
//	orders.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	orders := rg.Group("/orders")
	orders.Use(RequestIDMiddleware())
	{
		orders.GET("/health", handlers.HandleHealth)
		orders.GET("/ready", handlers.HandleReady)
	}

	guarded := orders.Group("")
	guarded.Use(handlers.AccessMiddleware())
	{
		guarded.POST("/messages", handlers.HandleMessage)
		guarded.POST("/parse", handlers.HandleParse)
		guarded.GET("/stock", handlers.HandleStock)
		guarded.GET("/help", handlers.HandleHelp)
		guarded.GET("/whoami", handlers.HandleWhoAmI)
		guarded.POST("/catalog/reload", handlers.HandleReload)
	}
}

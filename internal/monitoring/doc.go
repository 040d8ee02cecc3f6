/*
Package monitoring provides Prometheus metrics collection.

# Overview

This package tracks HTTP requests, intercepted capability calls,
behavioral flags, permission prompts, delayed script executions, and
session lifecycle events.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain events
	metrics.Intercepted("storage")
	metrics.FlagRecorded("storage-abuse")

A nil *Metrics records nothing, so packages accept one without guarding
every call site.

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring

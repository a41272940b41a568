/*
Package monitoring provides Prometheus metrics for the widget host.

# Overview

Metrics live on a private registry so tests and multiple hosts in one process
never collide. Every Record method is safe on a nil *Metrics, letting
components treat metrics as optional.

# Metrics

- HTTP request count and latency
- Running instances, launches by result, crashes
- Capability calls by outcome and their latency
- Permission prompts by decision
- Rate limit rejections and live limiter entries
- State writes by reason and result
- WebSocket connections and messages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring

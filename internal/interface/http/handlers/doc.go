// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - Authentication and hardening middleware
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddOptionalCheck("cache", handlers.NewCacheCheck(cache))
//	checker.AddCheck("queue", handlers.NewQueueCheck(queue, capacity))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// Optional checks report degradation without failing the probe: the engine
// keeps serving from Postgres when Redis is down, so a cache outage must not
// take the pod out of rotation.
//
// # Middleware
//
//	// API Key authentication for the admin endpoints
//	auth := handlers.NewAPIKeyAuth("X-API-Key", []string{"secret-key"})
//	protected := auth.Middleware(myHandler)
//
//	// Body size cap for event ingestion
//	limited := handlers.MaxBodyBytes(1 << 20)(myHandler)
package handlers

// Package app provides application initialization and lifecycle management for
// the Fusion BI portal. It wires configuration, logging, telemetry, the
// databases, the month cache and the HTTP surface together.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from defaults, an optional YAML file and environment
//	2. Initialize logging and OpenTelemetry
//	3. Open the portal database and, on SQL Server, the Core database
//	4. Build the repositories, the expected-index cache and the month cache
//	5. Initialize services, the WebSocket hub and the refresh scheduler
//	6. Set up HTTP handlers and middleware
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Stop drains in-flight requests, stops the
// scheduler and the WebSocket hub, closes the databases and flushes
// telemetry.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app does not
// call os.Exit() directly, allowing the main function to control the exit
// process.
package app

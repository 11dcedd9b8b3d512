// Package app wires the sales-web service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Resolve and create the run and upload directories
//	2. Create the websocket hub and its metrics
//	3. Create the status broadcaster, run store and pipeline manager
//	4. Create the analysis and health services
//	5. Build the chi router with the middleware chain
//	6. Configure the HTTP server
//
// Configuration, logging and OpenTelemetry are set up by the caller and
// passed in, so tests can build an Application without touching globals.
//
// # Usage
//
//	application, err := app.NewApplication(cfg, providers, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns once ctx is cancelled (the cmd wires SIGINT and SIGTERM to
// it) or the server fails. Shutdown drains in-flight requests within
// server.shutdown_timeout, stops the broadcaster and closes every
// websocket client.
package app

// Package app wires configuration, storage, the extraction runner, services
// and the HTTP router into one Application and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Validate configuration
//  2. Initialize OpenTelemetry and business metrics
//  3. Open the table store (memory or postgres)
//  4. Build the pipeline, job runner and services
//  5. Set up HTTP handlers and middleware
//
// Start loads the default master workbook when configured, starts the
// refresh scheduler and begins serving. Stop drains in-flight extractions,
// closes the hub and store and flushes telemetry. Errors are returned to the
// caller; the package never calls os.Exit.
package app

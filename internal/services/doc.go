// Package services implements the business logic behind the HTTP API.
//
// Handlers stay thin: they decode requests and call one service method.
// Services own validation, logging and the translation of storage and
// pipeline outcomes into domain errors that the error handler maps to
// problem responses.
//
// # Available Services
//
//   - ExtractionService: runs workbook extractions as jobs
//   - MasterService: loads and queries issuer master data
//   - TableService: reads and edits persisted tables
//   - FormulaService: evaluates and previews column formulas
//   - HealthService: liveness and readiness checks
package services

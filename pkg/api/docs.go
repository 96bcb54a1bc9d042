// Package api provides the read-only REST API over indexed checkpoints.
// @title sui-indexer API
// @version 1.0
// @description REST API for querying Sui events and transactions stored by sui-indexer
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api

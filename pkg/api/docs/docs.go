// Package docs holds the OpenAPI description served under /swagger/.
// Regenerate with: swag init -g pkg/api/docs.go -o pkg/api/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/events": {
            "get": {
                "description": "Retrieve indexed events with optional filtering and pagination, ordered by checkpoint, transaction digest and event sequence",
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Query events",
                "parameters": [
                    {"type": "integer", "description": "Lowest checkpoint sequence, inclusive", "name": "from_checkpoint", "in": "query"},
                    {"type": "integer", "description": "Highest checkpoint sequence, inclusive", "name": "to_checkpoint", "in": "query"},
                    {"type": "string", "description": "Package id", "name": "package", "in": "query"},
                    {"type": "string", "description": "Module name", "name": "module", "in": "query"},
                    {"type": "string", "description": "Fully qualified event type", "name": "event_type", "in": "query"},
                    {"type": "string", "description": "Sender address", "name": "sender", "in": "query"},
                    {"type": "string", "description": "Transaction digest", "name": "tx_digest", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum number of events to return", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Number of events to skip", "name": "offset", "in": "query"},
                    {"enum": ["asc", "desc"], "type": "string", "description": "Sort order", "name": "order", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.EventsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/checkpoints/{sequence}/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Events of a checkpoint",
                "parameters": [
                    {"type": "integer", "description": "Checkpoint sequence", "name": "sequence", "in": "path", "required": true},
                    {"type": "integer", "default": 100, "description": "Maximum number of events to return", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Number of events to skip", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.EventsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/transactions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Transactions"],
                "summary": "Query transactions",
                "parameters": [
                    {"type": "integer", "description": "Lowest checkpoint sequence, inclusive", "name": "from_checkpoint", "in": "query"},
                    {"type": "integer", "description": "Highest checkpoint sequence, inclusive", "name": "to_checkpoint", "in": "query"},
                    {"type": "string", "description": "Sender address", "name": "sender", "in": "query"},
                    {"enum": ["success", "failure"], "type": "string", "description": "Execution status", "name": "status", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum number of transactions to return", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Number of transactions to skip", "name": "offset", "in": "query"},
                    {"enum": ["asc", "desc"], "type": "string", "description": "Sort order", "name": "order", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.TransactionsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/transactions/{digest}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Transactions"],
                "summary": "Get a transaction",
                "parameters": [
                    {"type": "string", "description": "Transaction digest", "name": "digest", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ProcessedTransaction"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Indexing statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StatsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "last_committed": {"type": "integer"},
                "status": {"type": "string"},
                "stream": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "api.PaginationResult": {
            "type": "object",
            "properties": {
                "has_more": {"type": "boolean"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "api.EventsResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/types.ProcessedEvent"}},
                "pagination": {"$ref": "#/definitions/api.PaginationResult"}
            }
        },
        "api.TransactionsResponse": {
            "type": "object",
            "properties": {
                "pagination": {"$ref": "#/definitions/api.PaginationResult"},
                "transactions": {"type": "array", "items": {"$ref": "#/definitions/types.ProcessedTransaction"}}
            }
        },
        "api.StatsResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "integer"},
                "progress": {"$ref": "#/definitions/types.CheckpointProgress"},
                "transactions": {"type": "integer"}
            }
        },
        "types.CheckpointProgress": {
            "type": "object",
            "properties": {
                "sequence": {"type": "integer"},
                "stream": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "types.ProcessedEvent": {
            "type": "object",
            "properties": {
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}},
                "checkpoint_sequence": {"type": "integer"},
                "event_sequence": {"type": "integer"},
                "event_type": {"type": "string"},
                "fields": {"type": "object"},
                "id": {"type": "string"},
                "module_name": {"type": "string"},
                "package_id": {"type": "string"},
                "processed_at": {"type": "string"},
                "sender": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "timestamp": {"type": "string"},
                "transaction_digest": {"type": "string"}
            }
        },
        "types.ProcessedTransaction": {
            "type": "object",
            "properties": {
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}},
                "checkpoint_sequence": {"type": "integer"},
                "digest": {"type": "string"},
                "effects": {"type": "object"},
                "gas_used": {"type": "integer"},
                "id": {"type": "string"},
                "processed_at": {"type": "string"},
                "sender": {"type": "string"},
                "status": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "sui-indexer API",
	Description:      "REST API for querying Sui events and transactions stored by sui-indexer",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

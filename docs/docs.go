// Package docs holds the OpenAPI description of the status server.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Ready once the game server has answered at least one status query.",
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/status": {
            "get": {
                "description": "Last observed player count, regime and schedule.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Monitor status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/monitor.Status"}}}
                            ]
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"$ref": "#/definitions/handler.apiResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "generated_at": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "monitor.Status": {
            "type": "object",
            "properties": {
                "check_interval_seconds": {"type": "integer"},
                "last_check": {"type": "string"},
                "last_error": {"type": "string"},
                "last_seed_message": {"type": "string"},
                "map_name": {"type": "string"},
                "next_check": {"type": "string"},
                "player_count": {"type": "integer"},
                "ready": {"type": "boolean"},
                "regime": {"type": "string", "enum": ["quiet", "seeding", "idle"]},
                "server_name": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "HLL Seed Ping Status API",
	Description:      "Health, readiness and live status of the seeding monitor.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

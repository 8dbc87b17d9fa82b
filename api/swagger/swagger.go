package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Substitute API",
        "description": "Assigns substitute teachers to periods vacated by absent teachers",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Substitutions", "description": "Substitute assignment runs and committed results"},
        {"name": "Absences", "description": "Daily absence reports"},
        {"name": "Metrics", "description": "Service health and counters"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "All dependencies reachable"},
                    "503": {"description": "A dependency is degraded"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/run": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Run substitute assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RunSubstitutionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Run completed or partial", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Run failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Run abandoned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/run/async": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Queue substitute assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RunSubstitutionRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Queued run status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/{date}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Committed assignments of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Substitutions"],
                "summary": "Reset committed assignments of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "204": {"description": "Reset"},
                    "409": {"description": "Run in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/{date}/logs": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Process log of the latest run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/{date}/warnings": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Warnings of the latest run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/substitutions/{date}/export": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Export committed assignments",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered file"},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/absences": {
            "post": {
                "tags": ["Absences"],
                "summary": "Record an absence",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RecordAbsenceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/absences/{date}": {
            "get": {
                "tags": ["Absences"],
                "summary": "Absences recorded for a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "date", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RunSubstitutionRequest": {
            "type": "object",
            "required": ["date"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "absentees": {"type": "array", "items": {"type": "string"}}
            }
        },
        "RecordAbsenceRequest": {
            "type": "object",
            "required": ["teacherName", "date"],
            "properties": {
                "teacherName": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "phoneNumber": {"type": "string"}
            }
        },
        "Assignment": {
            "type": "object",
            "properties": {
                "originalTeacher": {"type": "string"},
                "period": {"type": "integer"},
                "className": {"type": "string"},
                "substitute": {"type": "string"},
                "substitutePhone": {"type": "string"},
                "fallback": {"type": "boolean"},
                "assignedAt": {"type": "string", "format": "date-time"}
            }
        },
        "ProcessLogEntry": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "format": "date-time"},
                "action": {"type": "string"},
                "details": {"type": "string"},
                "status": {"type": "string", "enum": ["info", "warning", "error"]},
                "data": {"type": "object"},
                "durationMs": {"type": "integer"}
            }
        },
        "RunJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "absentees": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["queued", "running", "finished", "failed"]},
                "attempts": {"type": "integer"},
                "error": {"type": "string"},
                "enqueuedAt": {"type": "string", "format": "date-time"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

// Package docs holds the OpenAPI document served under /swagger/. It is
// kept in the layout swag init produces from the handler annotations in
// internal/transport/http.
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
        "/analyses": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "List analyses",
                "parameters": [
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "Run status", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.AnalysisListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Analyze a sales file",
                "parameters": [
                    {"type": "file", "description": "CSV, TSV or XLSX sales file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Missing value policy", "name": "policy", "in": "formData"},
                    {"type": "string", "description": "Period granularity", "name": "granularity", "in": "formData"},
                    {"type": "string", "description": "Comma separated chart types", "name": "charts", "in": "formData"},
                    {"type": "string", "description": "Comma separated export formats", "name": "exports", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.AnalysisResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}}
                }
            }
        },
        "/analyses/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Get an analysis",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.AnalysisResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}}
                }
            }
        },
        "/analyses/{id}/artifacts/{name}": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["analyses"],
                "summary": "Download an artifact",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Artifact file name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ProblemDetails"}}
                }
            }
        }
    },
    "definitions": {
        "api.AnalysisListResponse": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "runs": {"type": "array", "items": {"$ref": "#/definitions/domain.Run"}},
                "total": {"type": "integer"}
            }
        },
        "api.AnalysisResponse": {
            "type": "object",
            "properties": {
                "links": {"$ref": "#/definitions/api.Links"},
                "run": {"$ref": "#/definitions/domain.Run"}
            }
        },
        "api.Links": {
            "type": "object",
            "properties": {
                "artifacts": {"type": "object", "additionalProperties": {"type": "string"}},
                "self": {"type": "string"}
            }
        },
        "domain.Run": {
            "type": "object",
            "properties": {
                "clean": {"type": "object"},
                "completed_at": {"type": "string"},
                "error": {"type": "string"},
                "id": {"type": "string"},
                "input": {"type": "string"},
                "metrics": {"type": "object"},
                "output_dir": {"type": "string"},
                "report": {"type": "object"},
                "stages": {"type": "array", "items": {"type": "object"}},
                "started_at": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "completed", "partial", "failed"]}
            }
        },
        "errors.ProblemDetails": {
            "type": "object",
            "properties": {
                "detail": {"type": "string"},
                "instance": {"type": "string"},
                "status": {"type": "integer"},
                "title": {"type": "string"},
                "type": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Sales Report API",
	Description:      "Upload sales files and download the generated charts and exports.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

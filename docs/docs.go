// Package docs registers the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Password login, returns a token or a 2FA challenge",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginInput"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/me": {"get": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Current session", "responses": {"200": {"description": "OK"}}}},
        "/dashboard": {"get": {"tags": ["dashboard"], "security": [{"BearerAuth": []}], "summary": "Headline counters", "responses": {"200": {"description": "OK"}}}},
        "/dashboard/operational-stats": {"get": {"tags": ["dashboard"], "security": [{"BearerAuth": []}], "summary": "Workload and rating distribution", "responses": {"200": {"description": "OK"}}}},
        "/dashboard/detail/{type}": {
            "get": {
                "tags": ["dashboard"],
                "security": [{"BearerAuth": []}],
                "summary": "Detail rows for one catalog query",
                "parameters": [
                    {"in": "path", "name": "type", "required": true, "type": "string"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Unknown type"}}
            }
        },
        "/export/{kind}": {
            "get": {
                "tags": ["export"],
                "security": [{"BearerAuth": []}],
                "summary": "CSV or XLSX export of conversations, leads or appointments",
                "parameters": [
                    {"in": "path", "name": "kind", "required": true, "type": "string", "enum": ["conversations", "leads", "appointments"]},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "xlsx"]}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/public/ratings/{token}": {
            "post": {
                "tags": ["ratings"],
                "summary": "Customer answers a rating link",
                "parameters": [{"in": "path", "name": "token", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown token"}, "409": {"description": "Already answered or expired"}}
            }
        },
        "/system/jobs": {"get": {"tags": ["system"], "security": [{"BearerAuth": []}], "summary": "Maintenance jobs and their next run", "responses": {"200": {"description": "OK"}, "403": {"description": "Not a super user"}}}},
        "/system/jobs/{name}/run": {
            "post": {
                "tags": ["system"],
                "security": [{"BearerAuth": []}],
                "summary": "Trigger a maintenance job now",
                "parameters": [{"in": "path", "name": "name", "required": true, "type": "string"}],
                "responses": {"202": {"description": "Started"}, "404": {"description": "Unknown job"}}
            }
        }
    },
    "definitions": {
        "LoginInput": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "code": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "wadesk admin API",
	Description:      "Multi-tenant WhatsApp customer service backend",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the admin API description with swag
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
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/api/v1/admin/investments/{id}/commissions": {
            "post": {
                "tags": ["Admin Commissions"],
                "summary": "Process investment commissions",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "Investment ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/investments/{id}/withdrawals": {
            "post": {
                "tags": ["Admin Commissions"],
                "summary": "Process early withdrawal",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "Investment ID", "name": "id", "in": "path", "required": true},
                    {"description": "Withdrawal", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.WithdrawalRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/commissions/settle": {
            "post": {
                "tags": ["Admin Commissions"],
                "summary": "Settle pending commissions",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"description": "Batch bounds", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/dto.SettleCommissionsRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/distributions/annual": {
            "post": {
                "tags": ["Admin Distributions"],
                "summary": "Distribute annual profit",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"description": "Annual run", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.AnnualDistributionRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/distributions/quarterly": {
            "post": {
                "tags": ["Admin Distributions"],
                "summary": "Distribute quarterly bonus",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"description": "Quarterly run", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.QuarterlyBonusRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/distributions/{id}": {
            "get": {
                "tags": ["Admin Distributions"],
                "summary": "Get distribution",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "Distribution ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/distributions/{id}/report": {
            "get": {
                "tags": ["Admin Distributions"],
                "summary": "Download distribution report",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [{"type": "integer", "description": "Distribution ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "XLSX file", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/accounts/{id}/tier": {
            "post": {
                "tags": ["Admin Tiers"],
                "summary": "Reclassify account tier",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "Reason", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/dto.TierUpgradeRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/accounts/{id}/benefits": {
            "get": {
                "tags": ["Admin Tiers"],
                "summary": "Get account benefits",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "Account ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/tiers/sweep": {
            "post": {
                "tags": ["Admin Tiers"],
                "summary": "Sweep tier upgrades",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"description": "Sweep window", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.TierSweepRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/work-units/{uuid}": {
            "get": {
                "tags": ["Admin Work Units"],
                "summary": "Get work unit",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Work unit UUID", "name": "uuid", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {}
            }
        },
        "dto.WithdrawalRequest": {
            "type": "object",
            "required": ["withdrawal_reference", "withdrawn_at"],
            "properties": {
                "withdrawal_reference": {"type": "string", "maxLength": 255},
                "withdrawn_at": {"type": "string", "format": "date-time"}
            }
        },
        "dto.SettleCommissionsRequest": {
            "type": "object",
            "properties": {
                "batch_size": {"type": "integer", "minimum": 1, "maximum": 10000},
                "max_age_days": {"type": "integer", "minimum": 0}
            }
        },
        "dto.AnnualDistributionRequest": {
            "type": "object",
            "required": ["distribution_date", "created_by"],
            "properties": {
                "total_profit": {"type": "string"},
                "distribution_date": {"type": "string", "example": "2025-12-31"},
                "force": {"type": "boolean"},
                "created_by": {"type": "string", "maxLength": 100}
            }
        },
        "dto.QuarterlyBonusRequest": {
            "type": "object",
            "required": ["distribution_date", "created_by"],
            "properties": {
                "total_profit": {"type": "string"},
                "bonus_pool_percentage": {"type": "string", "example": "7.5"},
                "distribution_date": {"type": "string", "example": "2025-09-30"},
                "force": {"type": "boolean"},
                "created_by": {"type": "string", "maxLength": 100}
            }
        },
        "dto.TierUpgradeRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string", "enum": ["investment_activity", "scheduled_sweep", "manual"]}
            }
        },
        "dto.TierSweepRequest": {
            "type": "object",
            "required": ["since"],
            "properties": {
                "since": {"type": "string", "format": "date-time"},
                "batch_size": {"type": "integer", "minimum": 1, "maximum": 10000}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Susanoo Distribution Engine Admin API",
	Description:      "Admin surface for submitting commission, clawback, settlement, distribution and tier work units.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

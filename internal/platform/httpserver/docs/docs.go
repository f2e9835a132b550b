// Package docs holds the swagger document served under /swagger/.
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
		"/v1/ledger/views": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Settle a content view",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ProcessViewRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/SettlementOutcomeResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"429": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"500": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/balances/{user_id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Get balances",
				"parameters": [
					{
						"type": "string",
						"description": "user_id",
						"name": "user_id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/BalanceResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"403": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/users/{user_id}/entries": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "List journal entries",
				"parameters": [
					{
						"type": "string",
						"description": "user_id",
						"name": "user_id",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "offset",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/ListEntriesResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"403": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/content": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Publish content",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/PublishContentRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/ContentResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"409": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/stars/spend": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Spend stars",
				"parameters": [
					{
						"type": "string",
						"description": "Idempotency key",
						"name": "Idempotency-Key",
						"in": "header",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/SpendStarsRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/SpendStarsResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"409": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"422": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/voice-credits/deduct": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Charge a voice message",
				"parameters": [
					{
						"type": "string",
						"description": "Idempotency key",
						"name": "Idempotency-Key",
						"in": "header",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/DeductVoiceCreditsRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/DeductVoiceCreditsResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"422": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/groups": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Register a paid group",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/RegisterGroupRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/GroupResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"409": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/content/{content_id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Get a content item",
				"parameters": [
					{
						"type": "string",
						"description": "content_id",
						"name": "content_id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/ContentResponse"
						}
					},
					"404": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/groups/{group_id}/join": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Join a paid group",
				"parameters": [
					{
						"type": "string",
						"description": "group_id",
						"name": "group_id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/JoinGroupResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"422": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/ledger/admin/stars/credit": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"star-ledger"
				],
				"summary": "Credit stars",
				"parameters": [
					{
						"type": "string",
						"description": "Idempotency key",
						"name": "Idempotency-Key",
						"in": "header",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/CreditStarsRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/CreditStarsResponse"
						}
					},
					"400": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					},
					"403": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/viewing/session": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"viewing"
				],
				"summary": "Open a viewing session",
				"parameters": [
					{
						"type": "string",
						"name": "access_token",
						"in": "query"
					}
				],
				"responses": {
					"101": {
						"description": "Switching Protocols"
					},
					"401": {
						"description": "error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"ProcessViewRequest": {
			"type": "object",
			"properties": {
				"content_id": {
					"type": "string"
				}
			}
		},
		"SettlementOutcomeResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"already_viewed": {
					"type": "boolean"
				},
				"charged": {
					"type": "boolean"
				},
				"insufficient_stars": {
					"type": "boolean"
				},
				"stars_spent": {
					"type": "integer"
				},
				"viewer_earn": {
					"type": "string"
				},
				"available_stars": {
					"type": "integer"
				},
				"required_stars": {
					"type": "integer"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"BalanceResponse": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"star_balance": {
					"type": "integer"
				},
				"wallet_balance": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"LedgerEntryItem": {
			"type": "object",
			"properties": {
				"entry_id": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"star_delta": {
					"type": "integer"
				},
				"wallet_delta": {
					"type": "string"
				},
				"reference_id": {
					"type": "string"
				},
				"created_at": {
					"type": "string"
				}
			}
		},
		"ListEntriesResponse": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/LedgerEntryItem"
					}
				}
			}
		},
		"PublishContentRequest": {
			"type": "object",
			"properties": {
				"content_id": {
					"type": "string"
				},
				"kind": {
					"type": "string"
				},
				"media_kind": {
					"type": "string"
				},
				"star_price": {
					"type": "integer"
				}
			}
		},
		"ContentResponse": {
			"type": "object",
			"properties": {
				"content_id": {
					"type": "string"
				},
				"owner_id": {
					"type": "string"
				},
				"kind": {
					"type": "string"
				},
				"media_kind": {
					"type": "string"
				},
				"star_price": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"expires_at": {
					"type": "string"
				}
			}
		},
		"SpendStarsRequest": {
			"type": "object",
			"properties": {
				"amount": {
					"type": "integer"
				},
				"reason": {
					"type": "string"
				},
				"reference_id": {
					"type": "string"
				}
			}
		},
		"SpendStarsResponse": {
			"type": "object",
			"properties": {
				"entry_id": {
					"type": "string"
				},
				"stars_spent": {
					"type": "integer"
				},
				"star_balance": {
					"type": "integer"
				},
				"replayed": {
					"type": "boolean"
				}
			}
		},
		"DeductVoiceCreditsRequest": {
			"type": "object",
			"properties": {
				"duration_seconds": {
					"type": "integer"
				},
				"message_id": {
					"type": "string"
				}
			}
		},
		"DeductVoiceCreditsResponse": {
			"type": "object",
			"properties": {
				"entry_id": {
					"type": "string"
				},
				"stars_deducted": {
					"type": "integer"
				},
				"star_balance": {
					"type": "integer"
				},
				"recharge_suggested": {
					"type": "boolean"
				},
				"replayed": {
					"type": "boolean"
				}
			}
		},
		"RegisterGroupRequest": {
			"type": "object",
			"properties": {
				"group_id": {
					"type": "string"
				},
				"fee_stars": {
					"type": "integer"
				}
			}
		},
		"GroupResponse": {
			"type": "object",
			"properties": {
				"group_id": {
					"type": "string"
				},
				"owner_id": {
					"type": "string"
				},
				"fee_stars": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				}
			}
		},
		"JoinGroupResponse": {
			"type": "object",
			"properties": {
				"group_id": {
					"type": "string"
				},
				"joined": {
					"type": "boolean"
				},
				"already_member": {
					"type": "boolean"
				},
				"stars_charged": {
					"type": "integer"
				},
				"star_balance": {
					"type": "integer"
				}
			}
		},
		"CreditStarsRequest": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"amount": {
					"type": "integer"
				}
			}
		},
		"CreditStarsResponse": {
			"type": "object",
			"properties": {
				"entry_id": {
					"type": "string"
				},
				"star_balance": {
					"type": "integer"
				},
				"replayed": {
					"type": "boolean"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SaveMore Ledger API",
	Description:      "Star ledger settlement, balances and viewing sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

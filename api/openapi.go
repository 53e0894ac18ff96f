package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getOpenAPISpec returns the OpenAPI 3.1.0 specification for the Dirigo API
func (s *Server) getOpenAPISpec(c *gin.Context) {
	spec := map[string]interface{}{
		"openapi": "3.1.0",
		"info": map[string]interface{}{
			"title":       "Dirigo REST API",
			"description": "A REST API for POSIX account provisioning and lifecycle management.",
			"version":     "1.0.0",
		},
		"servers": []map[string]interface{}{
			{
				"url":         "http://localhost:8080",
				"description": "Development server",
			},
		},
		"paths":      s.getOpenAPIPaths(),
		"components": s.getOpenAPIComponents(),
	}

	c.JSON(http.StatusOK, spec)
}

// getOpenAPIPaths returns all API paths for the OpenAPI spec
func (s *Server) getOpenAPIPaths() map[string]interface{} {
	jsonBody := func(ref string) map[string]interface{} {
		return map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]interface{}{"$ref": ref},
				},
			},
		}
	}
	jsonResponse := func(description, ref string) map[string]interface{} {
		resp := map[string]interface{}{"description": description}
		if ref != "" {
			resp["content"] = map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]interface{}{"$ref": ref},
				},
			}
		}
		return resp
	}
	pathParam := func(name string) map[string]interface{} {
		return map[string]interface{}{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]interface{}{"type": "string"},
		}
	}

	return map[string]interface{}{
		"/health": map[string]interface{}{
			"get": map[string]interface{}{
				"summary": "Health check",
				"tags":    []string{"Health"},
				"responses": map[string]interface{}{
					"200": jsonResponse("Server is healthy", "#/components/schemas/HealthResponse"),
					"503": jsonResponse("Server is degraded", "#/components/schemas/HealthResponse"),
				},
			},
		},
		"/auth/login": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Operator login",
				"tags":        []string{"Auth"},
				"requestBody": jsonBody("#/components/schemas/LoginRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Tokens issued", ""),
					"401": jsonResponse("Invalid credentials", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/auth/refresh": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Refresh access token",
				"tags":        []string{"Auth"},
				"requestBody": jsonBody("#/components/schemas/RefreshRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("New access token issued", ""),
					"401": jsonResponse("Invalid refresh token", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/accounts": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Activate an account",
				"description": "Provision POSIX attributes for a directory user",
				"tags":        []string{"Accounts"},
				"requestBody": jsonBody("#/components/schemas/AccountActivateRequest"),
				"responses": map[string]interface{}{
					"201": jsonResponse("Account activated", ""),
					"400": jsonResponse("Invalid request", "#/components/schemas/ErrorResponse"),
					"409": jsonResponse("UID or GID conflict, or already active", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/accounts/{uid}": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":    "Get an account",
				"tags":       []string{"Accounts"},
				"parameters": []map[string]interface{}{pathParam("uid")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Account found", ""),
					"404": jsonResponse("No POSIX attributes", "#/components/schemas/ErrorResponse"),
				},
			},
			"patch": map[string]interface{}{
				"summary":     "Update an account",
				"description": "Apply a sparse attribute patch. The uid_number field is immutable.",
				"tags":        []string{"Accounts"},
				"parameters":  []map[string]interface{}{pathParam("uid")},
				"requestBody": jsonBody("#/components/schemas/AccountUpdateRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Account updated", ""),
					"400": jsonResponse("Invalid patch", "#/components/schemas/ErrorResponse"),
					"404": jsonResponse("Account not active", "#/components/schemas/ErrorResponse"),
				},
			},
			"delete": map[string]interface{}{
				"summary":    "Deactivate an account",
				"tags":       []string{"Accounts"},
				"parameters": []map[string]interface{}{pathParam("uid")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Account deactivated", ""),
					"404": jsonResponse("Account not active", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/accounts/{uid}/status": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":    "Derive account status",
				"tags":       []string{"Accounts"},
				"parameters": []map[string]interface{}{pathParam("uid")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Status derived", ""),
					"404": jsonResponse("Account not active", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/accounts/{uid}/trust": map[string]interface{}{
			"put": map[string]interface{}{
				"summary":     "Set user trust scope",
				"tags":        []string{"Trust"},
				"parameters":  []map[string]interface{}{pathParam("uid")},
				"requestBody": jsonBody("#/components/schemas/TrustRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Trust updated", ""),
					"400": jsonResponse("Invalid trust scope", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/groups": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Create a group",
				"tags":        []string{"Groups"},
				"requestBody": jsonBody("#/components/schemas/GroupRequest"),
				"responses": map[string]interface{}{
					"201": jsonResponse("Group created", ""),
					"409": jsonResponse("Name or GID conflict", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/groups/{cn}": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":    "Get a group",
				"tags":       []string{"Groups"},
				"parameters": []map[string]interface{}{pathParam("cn")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Group found", ""),
					"404": jsonResponse("Group not found", "#/components/schemas/ErrorResponse"),
				},
			},
			"delete": map[string]interface{}{
				"summary":     "Delete a group",
				"description": "Deletes the group only when it has no members",
				"tags":        []string{"Groups"},
				"parameters":  []map[string]interface{}{pathParam("cn")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Group deleted", ""),
					"409": jsonResponse("Group missing or not empty", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/groups/{cn}/trust": map[string]interface{}{
			"put": map[string]interface{}{
				"summary":     "Set group trust scope",
				"tags":        []string{"Trust"},
				"parameters":  []map[string]interface{}{pathParam("cn")},
				"requestBody": jsonBody("#/components/schemas/TrustRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Trust updated", ""),
					"400": jsonResponse("Invalid trust scope", "#/components/schemas/ErrorResponse"),
				},
			},
		},
		"/groups/{cn}/members/{uid}": map[string]interface{}{
			"put": map[string]interface{}{
				"summary":    "Add a group member",
				"tags":       []string{"Groups"},
				"parameters": []map[string]interface{}{pathParam("cn"), pathParam("uid")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Member added", ""),
					"404": jsonResponse("Group not found", "#/components/schemas/ErrorResponse"),
				},
			},
			"delete": map[string]interface{}{
				"summary":    "Remove a group member",
				"tags":       []string{"Groups"},
				"parameters": []map[string]interface{}{pathParam("cn"), pathParam("uid")},
				"responses": map[string]interface{}{
					"200": jsonResponse("Member removed", ""),
				},
			},
		},
	}
}

// getOpenAPIComponents returns schema components for the OpenAPI spec
func (s *Server) getOpenAPIComponents() map[string]interface{} {
	return map[string]interface{}{
		"securitySchemes": map[string]interface{}{
			"bearerAuth": map[string]interface{}{
				"type":         "http",
				"scheme":       "bearer",
				"bearerFormat": "JWT",
			},
		},
		"schemas": map[string]interface{}{
			"HealthResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"status":    map[string]interface{}{"type": "string"},
					"timestamp": map[string]interface{}{"type": "string"},
					"version":   map[string]interface{}{"type": "string"},
					"uptime":    map[string]interface{}{"type": "string"},
					"checks":    map[string]interface{}{"type": "object"},
				},
			},
			"ErrorResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "integer"},
					"message": map[string]interface{}{"type": "string"},
					"error":   map[string]interface{}{"type": "string"},
					"details": map[string]interface{}{"type": "string"},
				},
			},
			"LoginRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"username", "password"},
				"properties": map[string]interface{}{
					"username": map[string]interface{}{"type": "string"},
					"password": map[string]interface{}{"type": "string"},
				},
			},
			"RefreshRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"refresh_token"},
				"properties": map[string]interface{}{
					"refresh_token": map[string]interface{}{"type": "string"},
				},
			},
			"ShadowFields": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"last_change": map[string]interface{}{"type": "integer"},
					"min":         map[string]interface{}{"type": "integer"},
					"max":         map[string]interface{}{"type": "integer"},
					"warning":     map[string]interface{}{"type": "integer"},
					"inactive":    map[string]interface{}{"type": "integer"},
					"expire":      map[string]interface{}{"type": "integer"},
				},
			},
			"AccountActivateRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"uid"},
				"properties": map[string]interface{}{
					"uid":            map[string]interface{}{"type": "string"},
					"uid_number":     map[string]interface{}{"type": "integer", "minimum": 1000, "maximum": 65534},
					"force_uid":      map[string]interface{}{"type": "boolean"},
					"group_mode":     map[string]interface{}{"type": "string", "enum": []string{"select_existing", "create_personal"}},
					"gid_number":     map[string]interface{}{"type": "integer"},
					"force_gid":      map[string]interface{}{"type": "boolean"},
					"home_directory": map[string]interface{}{"type": "string"},
					"login_shell":    map[string]interface{}{"type": "string"},
					"gecos":          map[string]interface{}{"type": "string"},
					"shadow":         map[string]interface{}{"$ref": "#/components/schemas/ShadowFields"},
					"trust_mode":     map[string]interface{}{"type": "string", "enum": []string{"none", "fullaccess", "byhost"}},
					"trust_hosts":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"AccountUpdateRequest": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"gid_number":     map[string]interface{}{"type": "integer"},
					"home_directory": map[string]interface{}{"type": "string"},
					"login_shell":    map[string]interface{}{"type": "string"},
					"gecos":          map[string]interface{}{"type": "string"},
					"shadow":         map[string]interface{}{"$ref": "#/components/schemas/ShadowFields"},
					"trust_mode":     map[string]interface{}{"type": "string"},
					"trust_hosts":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"GroupRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"cn"},
				"properties": map[string]interface{}{
					"cn":          map[string]interface{}{"type": "string"},
					"gid_number":  map[string]interface{}{"type": "integer"},
					"force_gid":   map[string]interface{}{"type": "boolean"},
					"description": map[string]interface{}{"type": "string"},
					"trust_mode":  map[string]interface{}{"type": "string"},
					"trust_hosts": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"TrustRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"mode"},
				"properties": map[string]interface{}{
					"mode":  map[string]interface{}{"type": "string", "enum": []string{"none", "fullaccess", "byhost"}},
					"hosts": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
		},
	}
}

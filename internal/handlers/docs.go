package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

var (
	pageParam  = queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1})
	limitParam = queryParam("limit", "Records per page (default: 100, max: 1000)", map[string]interface{}{"type": "integer", "default": defaultLimit, "maximum": maxLimit})
)

func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schemaRef},
			},
		},
	}
}

// openAPIDocument describes the SEB API in OpenAPI 3.0 form
func openAPIDocument() map[string]interface{} {
	errorResponse := jsonResponse("Error", "ErrorResponse")

	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Glacier SEB API",
			"description": "Stations, variable catalogs and stored daily, monthly and climatological aggregates of glacier surface energy balance data",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List ingested stations",
					"parameters": []map[string]interface{}{pageParam, limitParam},
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Stations ordered by id"},
						"500": errorResponse,
					},
				},
			},
			"/api/stations/{id}/variables": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List the variable catalog of a station",
					"parameters": []map[string]interface{}{{
						"name":     "id",
						"in":       "path",
						"required": true,
						"schema":   map[string]interface{}{"type": "string", "enum": []string{"S5", "S6", "S9", "S10"}},
					}},
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Variables in file order, erased ones flagged"},
						"404": errorResponse,
						"500": errorResponse,
					},
				},
			},
			"/api/aggregates": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Query stored aggregates",
					"description": "Climatology rows report their slot 0..13 instead of a date: slot 0 is December, 1..12 the calendar months, 13 January again",
					"parameters": []map[string]interface{}{
						queryParam("station_id", "Filter by station code", map[string]interface{}{"type": "string"}),
						queryParam("variable", "Filter by variable name", map[string]interface{}{"type": "string"}),
						queryParam("period", "Filter by period", map[string]interface{}{"type": "string", "enum": []string{"daily", "monthly", "climatology"}}),
						queryParam("start_date", "Periods starting on or after (YYYY-MM-DD)", map[string]interface{}{"type": "string", "format": "date"}),
						queryParam("end_date", "Periods starting on or before (YYYY-MM-DD)", map[string]interface{}{"type": "string", "format": "date"}),
						pageParam,
						limitParam,
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Paginated aggregates", "AggregatePage"),
						"400": errorResponse,
						"500": errorResponse,
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Service health",
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Healthy"},
						"503": map[string]string{"description": "Store unreachable"},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"Aggregate": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"station_id":   map[string]string{"type": "string"},
						"variable":     map[string]string{"type": "string"},
						"period":       map[string]string{"type": "string"},
						"period_start": map[string]string{"type": "string", "format": "date-time"},
						"slot":         map[string]string{"type": "integer"},
						"value":        map[string]interface{}{"type": "number", "nullable": true},
					},
				},
				"AggregatePage": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data":        map[string]interface{}{"type": "array", "items": map[string]string{"$ref": "#/components/schemas/Aggregate"}},
						"total":       map[string]string{"type": "integer"},
						"page":        map[string]string{"type": "integer"},
						"limit":       map[string]string{"type": "integer"},
						"total_pages": map[string]string{"type": "integer"},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI document
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}

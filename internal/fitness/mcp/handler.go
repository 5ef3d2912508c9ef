package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2beens/runcoach/internal/fitness"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Handler handles MCP tool requests and responses: parses input, calls the service, formats MCP result.
type Handler struct {
	service contextService
}

func NewHandler(service contextService) *Handler {
	return &Handler{
		service: service,
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding response: " + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

// GetSchemaTool returns the MCP tool handler for get_runcoach_schema.
func (h *Handler) GetSchemaTool() func(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
		text, err := h.service.GetSchema(ctx)
		if err != nil {
			return errorResult("Error fetching schema: " + err.Error()), nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil, nil
	}
}

type UserInput struct {
	UserID string `json:"user_id" jsonschema:"Runcoach user id (UUID)"`
}

type UserListInput struct {
	UserID string `json:"user_id" jsonschema:"Runcoach user id (UUID)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"How many recent entries to return (default 10, max 100)"`
}

// GetFitnessProfileTool returns the MCP tool handler for get_fitness_profile.
func (h *Handler) GetFitnessProfileTool() func(context.Context, *mcp.CallToolRequest, UserInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in UserInput) (*mcp.CallToolResult, any, error) {
		userID, err := uuid.Parse(in.UserID)
		if err != nil {
			return errorResult("Invalid user_id: use a UUID"), nil, nil
		}
		profile, err := h.service.GetProfile(ctx, userID)
		if errors.Is(err, fitness.ErrProfileNotFound) {
			return errorResult("No fitness profile yet, the user has to sync Garmin data first"), nil, nil
		}
		if err != nil {
			return errorResult("Error fetching profile: " + err.Error()), nil, nil
		}
		return jsonResult(profile), nil, nil
	}
}

// GetRecentActivitiesTool returns the MCP tool handler for get_recent_activities.
func (h *Handler) GetRecentActivitiesTool() func(context.Context, *mcp.CallToolRequest, UserListInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in UserListInput) (*mcp.CallToolResult, any, error) {
		userID, err := uuid.Parse(in.UserID)
		if err != nil {
			return errorResult("Invalid user_id: use a UUID"), nil, nil
		}
		list, err := h.service.ListActivities(ctx, userID, clampLimit(in.Limit))
		if err != nil {
			return errorResult("Error listing activities: " + err.Error()), nil, nil
		}
		if list == nil {
			list = []fitness.Activity{}
		}
		return jsonResult(list), nil, nil
	}
}

// GetHealthReadingsTool returns the MCP tool handler for get_health_readings.
func (h *Handler) GetHealthReadingsTool() func(context.Context, *mcp.CallToolRequest, UserListInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in UserListInput) (*mcp.CallToolResult, any, error) {
		userID, err := uuid.Parse(in.UserID)
		if err != nil {
			return errorResult("Invalid user_id: use a UUID"), nil, nil
		}
		list, err := h.service.ListHealthReadings(ctx, userID, clampLimit(in.Limit))
		if err != nil {
			return errorResult("Error listing health readings: " + err.Error()), nil, nil
		}
		if list == nil {
			list = []fitness.DailyHealthReading{}
		}
		return jsonResult(list), nil, nil
	}
}

type PacesInput struct {
	Predicted10KSeconds float64 `json:"predicted_10k_seconds" jsonschema:"Predicted 10K race time in seconds (e.g. 2400 for 40:00)"`
}

// CalculatePacesTool returns the MCP tool handler for calculate_training_paces.
func (h *Handler) CalculatePacesTool() func(context.Context, *mcp.CallToolRequest, PacesInput) (*mcp.CallToolResult, any, error) {
	return func(_ context.Context, _ *mcp.CallToolRequest, in PacesInput) (*mcp.CallToolResult, any, error) {
		paces, err := fitness.CalculateTrainingPaces(in.Predicted10KSeconds)
		if err != nil {
			return errorResult("Cannot calculate paces: predicted_10k_seconds must be a positive number"), nil, nil
		}
		return jsonResult(fitness.NewPacesResponse(in.Predicted10KSeconds, paces)), nil, nil
	}
}

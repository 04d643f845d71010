package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"torno/internal/services"
)

type Server struct {
	mcpServer *server.MCPServer
	service   *services.EnrichmentService
}

func NewServer(service *services.EnrichmentService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Torno Enrichment Registry",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		service: service,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"register_enrichment",
			mcp.WithDescription("Register a new enrichment definition in the catalog"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Unique name of the enrichment")),
			mcp.WithString("description", mcp.Description("Human-readable description")),
		),
		s.handleRegisterEnrichment,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_enrichments",
			mcp.WithDescription("List all registered enrichments with their versions"),
		),
		s.handleListEnrichments,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"queue_enrichment",
			mcp.WithDescription("Queue an enrichment job for a dataset"),
			mcp.WithString("dataset_id", mcp.Required(), mcp.Description("The dataset to enrich")),
			mcp.WithString("enrichment", mcp.Required(), mcp.Description("Name of the enrichment to apply")),
			mcp.WithString("input", mcp.Required(), mcp.Description("Input data as a JSON object string")),
			mcp.WithString("version", mcp.Description("Version id; latest when omitted")),
		),
		s.handleQueueEnrichment,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_job",
			mcp.WithDescription("Get the status and result of an enrichment job"),
			mcp.WithString("job_id", mcp.Required(), mcp.Description("The ID of the job")),
		),
		s.handleGetJob,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_features",
			mcp.WithDescription("Get the features an enrichment produced for a dataset"),
			mcp.WithString("dataset_id", mcp.Required(), mcp.Description("The dataset to read features for")),
			mcp.WithString("enrichment", mcp.Required(), mcp.Description("Name of the enrichment")),
		),
		s.handleGetFeatures,
	)
}

func (s *Server) handleRegisterEnrichment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	description, _ := args["description"].(string)

	def, err := s.service.Register(ctx, name, description, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to register enrichment: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(def)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListEnrichments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defs, err := s.service.ListEnrichments(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list enrichments: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(defs)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleQueueEnrichment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	datasetID, ok := args["dataset_id"].(string)
	if !ok || datasetID == "" {
		return mcp.NewToolResultError("Missing required parameter: dataset_id"), nil
	}
	enrichment, ok := args["enrichment"].(string)
	if !ok || enrichment == "" {
		return mcp.NewToolResultError("Missing required parameter: enrichment"), nil
	}
	rawInput, ok := args["input"].(string)
	if !ok || rawInput == "" {
		return mcp.NewToolResultError("Missing required parameter: input"), nil
	}
	version, _ := args["version"].(string)

	var input map[string]any
	if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("input is not a JSON object: %v", err)), nil
	}

	job, err := s.service.QueueJob(ctx, datasetID, enrichment, input, version)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to queue job: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(job)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	jobID, ok := args["job_id"].(string)
	if !ok || jobID == "" {
		return mcp.NewToolResultError("Missing required parameter: job_id"), nil
	}

	job, err := s.service.GetJob(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get job: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(job)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetFeatures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	datasetID, ok := args["dataset_id"].(string)
	if !ok || datasetID == "" {
		return mcp.NewToolResultError("Missing required parameter: dataset_id"), nil
	}
	enrichment, ok := args["enrichment"].(string)
	if !ok || enrichment == "" {
		return mcp.NewToolResultError("Missing required parameter: enrichment"), nil
	}

	features, err := s.service.GetFeatures(ctx, datasetID, enrichment)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get features: %v", err)), nil
	}
	if features == nil {
		return mcp.NewToolResultText("No features recorded for this dataset and enrichment"), nil
	}

	jsonBytes, _ := json.Marshal(features)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}

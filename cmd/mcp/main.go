package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCP Server
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
}

func NewMCPServer(v *viper.Viper) *MCPServer {
	v.SetDefault("MEDREMINDER_API_URL", "http://localhost:8080")
	return &MCPServer{
		apiURL:      strings.TrimRight(v.GetString("MEDREMINDER_API_URL"), "/"),
		apiUsername: v.GetString("MEDREMINDER_API_USERNAME"),
		apiPassword: v.GetString("MEDREMINDER_API_PASSWORD"),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Run serves newline-delimited JSON-RPC until in is exhausted
func (s *MCPServer) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			zap.S().Errorw("read failed", "error", err)
			return
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if line != "" {
			var req JSONRPCRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				zap.S().Warnw("invalid JSON-RPC line", "error", err)
			} else if req.ID != nil {
				response := s.handleRequest(req)
				responseBytes, _ := json.Marshal(response)
				fmt.Fprintln(out, string(responseBytes))
			}
		}

		if eof {
			return
		}
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "medreminder-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

var dateProperty = Property{Type: "string", Description: "Дата в формате YYYY-MM-DD (по умолчанию сегодня)"}

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	tools := []Tool{
		{
			Name:        "medreminder_list_medicines",
			Description: "Получить список лекарств с дозировкой, периодом и временем приема.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "medreminder_day_schedule",
			Description: "Получить приемы на день: время, лекарство, отмечен ли прием, общий статус дня.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"date": dateProperty},
			},
		},
		{
			Name:        "medreminder_add_medicine",
			Description: "Добавить лекарство. Время приема списком HH:MM.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"name":      {Type: "string", Description: "Название"},
					"dosage":    {Type: "string", Description: "Дозировка, например 500 мг"},
					"frequency": {Type: "string", Description: "Частота приема (текст)"},
					"startDate": {Type: "string", Description: "Первый день приема, YYYY-MM-DD"},
					"endDate":   {Type: "string", Description: "Последний день приема, YYYY-MM-DD"},
					"timeOfDay": {Type: "array", Description: "Время приема, например [\"08:00\", \"20:00\"]"},
					"notes":     {Type: "string", Description: "Заметки (опционально)"},
				},
				Required: []string{"name", "dosage", "startDate", "endDate", "timeOfDay"},
			},
		},
		{
			Name:        "medreminder_toggle_dose",
			Description: "Отметить прием как принятый или снять отметку. ID приема берется из medreminder_day_schedule.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"event_id": {Type: "string", Description: "ID приема: <medicineId>-YYYY-MM-DD-HH:MM"},
				},
				Required: []string{"event_id"},
			},
		},
		{
			Name:        "medreminder_history",
			Description: "История лекарств с длительностью курса и статусом.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query":  {Type: "string", Description: "Поиск по названию или дозировке"},
					"status": {Type: "string", Description: "Фильтр по статусу", Enum: []string{"all", "active", "inactive"}},
				},
			},
		},
	}

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result string
	var isError bool

	switch params.Name {
	case "medreminder_list_medicines":
		result, isError = s.apiGet("/api/medicines")
	case "medreminder_day_schedule":
		q := url.Values{}
		if d := stringArg(params.Arguments, "date"); d != "" {
			q.Set("date", d)
		}
		result, isError = s.apiGet("/api/calendar/day?" + q.Encode())
	case "medreminder_add_medicine":
		result, isError = s.apiPost("/api/medicines", params.Arguments)
	case "medreminder_toggle_dose":
		eventID := stringArg(params.Arguments, "event_id")
		if eventID == "" {
			result, isError = "event_id is required", true
			break
		}
		result, isError = s.apiPost("/api/events/"+url.PathEscape(eventID)+"/toggle", nil)
	case "medreminder_history":
		q := url.Values{}
		if v := stringArg(params.Arguments, "query"); v != "" {
			q.Set("q", v)
		}
		if v := stringArg(params.Arguments, "status"); v != "" {
			q.Set("status", v)
		}
		result, isError = s.apiGet("/api/history?" + q.Encode())
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func (s *MCPServer) apiGet(path string) (string, bool) {
	return s.apiRequest(http.MethodGet, path, nil)
}

func (s *MCPServer) apiPost(path string, body interface{}) (string, bool) {
	return s.apiRequest(http.MethodPost, path, body)
}

func (s *MCPServer) apiRequest(method, path string, body interface{}) (string, bool) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.apiURL+path, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	if s.apiUsername != "" {
		req.SetBasicAuth(s.apiUsername, s.apiPassword)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	// Parse and format the response
	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	// Pretty print the data
	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	// stdout carries the protocol; zap's production config logs to stderr
	logger, err := zap.NewProduction()
	if err == nil {
		zap.ReplaceGlobals(logger)
		defer logger.Sync()
	}

	v := viper.New()
	v.AutomaticEnv()

	NewMCPServer(v).Run(os.Stdin, os.Stdout)
}

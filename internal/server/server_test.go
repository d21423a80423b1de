package server

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.edges == nil {
		t.Fatal("New() did not set an edge detector")
	}
	if s.version != "dev" {
		t.Errorf("version: got %s, want dev", s.version)
	}
}

func TestNew_Options(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := New(
		WithLogger(log),
		WithWorkers(3),
		WithMaxImageSide(512),
		WithVersion("1.2.3"),
	)

	if s.log != log {
		t.Error("WithLogger not applied")
	}
	if s.workers != 3 {
		t.Errorf("workers: got %d, want 3", s.workers)
	}
	if s.cache.MaxSide() != 512 {
		t.Errorf("MaxSide: got %d, want 512", s.cache.MaxSide())
	}
	if s.version != "1.2.3" {
		t.Errorf("version: got %s, want 1.2.3", s.version)
	}

	// A nil logger keeps the default.
	if New(WithLogger(nil)).log == nil {
		t.Error("WithLogger(nil) cleared the logger")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
			if req.JSONRPC != "2.0" {
				t.Errorf("JSONRPC: got %s, want 2.0", req.JSONRPC)
			}
		})
	}
}

func TestMCPRequest_WithParams(t *testing.T) {
	jsonStr := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"hough_lines","arguments":{"path":"/test.png"}}}`

	var req MCPRequest
	if err := json.Unmarshal([]byte(jsonStr), &req); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("Failed to unmarshal params: %v", err)
	}

	if params.Name != "hough_lines" {
		t.Errorf("Name: got %v, want hough_lines", params.Name)
	}

	var args sourceArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		t.Fatalf("Failed to unmarshal arguments: %v", err)
	}
	if args.Path != "/test.png" {
		t.Errorf("Path: got %s, want /test.png", args.Path)
	}
}

func TestErrorResponse_OmitsEmptyData(t *testing.T) {
	s := New()

	resp := s.errorResponse(7, codeToolFailed, "Tool execution failed", "")
	if resp.Error.Data != nil {
		t.Errorf("Data: got %v, want nil", resp.Error.Data)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"data"`) {
		t.Errorf("empty data serialized: %s", data)
	}
	if strings.Contains(string(data), `"result"`) {
		t.Errorf("error response carries a result: %s", data)
	}

	resp = s.errorResponse(7, codeToolFailed, "Tool execution failed", "file not found")
	if resp.Error.Data != "file not found" {
		t.Errorf("Data: got %v, want 'file not found'", resp.Error.Data)
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := New()
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != 1 {
		t.Errorf("ID: got %v, want 1", resp.ID)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := New()
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      "ping-1",
		Method:  "ping",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := New()
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/list",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != 6 {
		t.Errorf("Expected 6 tools, got %d", len(toolsList))
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := New()
	req := &MCPRequest{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	}

	resp := s.handleRequest(req)

	// Notifications don't get responses
	if resp != nil {
		t.Error("notifications/initialized should return nil response")
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := New()
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "nonexistent/method",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Errorf("Error code: got %d, want %d", resp.Error.Code, codeMethodNotFound)
	}
}

func TestHandleInitialize(t *testing.T) {
	s := New(WithVersion("0.3.0"))
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      "init-1",
	}

	resp := s.handleInitialize(req)

	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}
	if resp.JSONRPC != "2.0" {
		t.Errorf("JSONRPC: got %s, want 2.0", resp.JSONRPC)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}

	if serverInfo["name"] != "hough-mcp" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
	if serverInfo["version"] != "0.3.0" {
		t.Errorf("serverInfo.version: got %v", serverInfo["version"])
	}
}

// runLines feeds input to Run and decodes one response per output line.
func runLines(t *testing.T, s *Server, input string) []MCPResponse {
	t.Helper()

	var out bytes.Buffer
	WithIO(strings.NewReader(input), &out)(s)
	if err := s.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var responses []MCPResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestRun_Session(t *testing.T) {
	s := New()
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	}, "\n")

	responses := runLines(t, s, input)
	if len(responses) != 3 {
		t.Fatalf("responses: got %d, want 3", len(responses))
	}

	wantIDs := []float64{1, 2, 3}
	for i, resp := range responses {
		if resp.ID != wantIDs[i] {
			t.Errorf("response %d ID: got %v, want %v", i, resp.ID, wantIDs[i])
		}
	}
	if responses[0].Error != nil || responses[1].Error != nil {
		t.Error("initialize and tools/list should succeed")
	}
	if responses[2].Error == nil || responses[2].Error.Code != codeMethodNotFound {
		t.Errorf("resources/list: got %+v, want method not found", responses[2].Error)
	}
}

func TestRun_ParseError(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(WithLogger(log))

	responses := runLines(t, s, "{not json\n"+`{"jsonrpc":"2.0","id":"p","method":"ping"}`+"\n")
	if len(responses) != 2 {
		t.Fatalf("responses: got %d, want 2", len(responses))
	}

	if responses[0].Error == nil || responses[0].Error.Code != codeParseError {
		t.Errorf("first response: got %+v, want parse error", responses[0].Error)
	}
	if responses[0].ID != nil {
		t.Errorf("parse error ID: got %v, want null", responses[0].ID)
	}
	if responses[1].Error != nil || responses[1].ID != "p" {
		t.Errorf("ping after parse error: got %+v", responses[1])
	}

	if len(hook.Entries) == 0 || hook.Entries[0].Level != logrus.WarnLevel {
		t.Error("parse error was not logged as a warning")
	}
}

func TestRun_ToolCallLogsCallID(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s := New(WithLogger(log))

	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}` + "\n"
	responses := runLines(t, s, input)
	if len(responses) != 1 {
		t.Fatalf("responses: got %d, want 1", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != codeToolFailed {
		t.Errorf("unknown tool: got %+v, want tool failure", responses[0].Error)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("tool call was not logged")
	}
	if id, _ := entry.Data["call_id"].(string); id == "" {
		t.Error("log entry has no call_id")
	}
	if entry.Data["tool"] != "no_such_tool" {
		t.Errorf("tool field: got %v", entry.Data["tool"])
	}
}

package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/teemow/schedassist/internal/conversation"
	"github.com/teemow/schedassist/internal/tools"
)

func TestToContentsRoleMapping(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "am I free tomorrow?"},
		{Role: conversation.RoleAssistant, Text: "let me check"},
		{Role: conversation.RoleToolResult, ToolName: "get_current_availability", Text: "free 09:00-12:00"},
	}

	contents := toContents(turns)
	if len(contents) != 3 {
		t.Fatalf("toContents() returned %d contents, want 3", len(contents))
	}

	if contents[0].Role != string(genai.RoleUser) {
		t.Errorf("user turn role = %q, want %q", contents[0].Role, genai.RoleUser)
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Errorf("assistant turn role = %q, want %q", contents[1].Role, genai.RoleModel)
	}

	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil {
		t.Fatal("tool result turn has no FunctionResponse part")
	}
	if fr.Name != "get_current_availability" {
		t.Errorf("FunctionResponse.Name = %q, want tool name", fr.Name)
	}
	if fr.Response["output"] != "free 09:00-12:00" {
		t.Errorf("FunctionResponse.Response = %v, want tool output", fr.Response)
	}
}

func TestToDeclarations(t *testing.T) {
	specs := []tools.Spec{{
		Name:        "setup_meeting",
		Description: "Create a calendar meeting",
		Parameters: tools.Schema{
			Properties: map[string]tools.Property{
				"summary":   {Type: "string", Description: "Meeting title"},
				"attendees": {Type: "array", Description: "Attendee emails"},
			},
			Required: []string{"summary"},
		},
	}}

	decls := toDeclarations(specs)
	if len(decls) != 1 {
		t.Fatalf("toDeclarations() returned %d declarations, want 1", len(decls))
	}

	decl := decls[0]
	if decl.Name != "setup_meeting" {
		t.Errorf("Name = %q, want setup_meeting", decl.Name)
	}
	if decl.Parameters == nil || decl.Parameters.Type != genai.TypeObject {
		t.Fatalf("Parameters = %+v, want object schema", decl.Parameters)
	}
	if decl.Parameters.Properties["summary"].Type != genai.TypeString {
		t.Errorf("summary type = %v, want string", decl.Parameters.Properties["summary"].Type)
	}
	if decl.Parameters.Properties["attendees"].Type != genai.TypeArray {
		t.Errorf("attendees type = %v, want array", decl.Parameters.Properties["attendees"].Type)
	}
	if len(decl.Parameters.Required) != 1 || decl.Parameters.Required[0] != "summary" {
		t.Errorf("Required = %v, want [summary]", decl.Parameters.Required)
	}
}

func TestToDeclarationsWithoutParameters(t *testing.T) {
	decls := toDeclarations([]tools.Spec{{Name: "list_unread"}})
	if decls[0].Parameters != nil {
		t.Errorf("Parameters = %+v, want nil for parameterless tool", decls[0].Parameters)
	}
}

func TestFromResponseExtractsFunctionCalls(t *testing.T) {
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: string(genai.RoleModel),
				Parts: []*genai.Part{
					{Text: "checking your calendar"},
					{FunctionCall: &genai.FunctionCall{
						Name: "get_current_availability",
						Args: map[string]any{"start": "2026-09-01T09:00:00Z"},
					}},
				},
			},
		}},
	}

	got := fromResponse(res)
	if got.Text != "checking your calendar" {
		t.Errorf("Text = %q, want interim text", got.Text)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %v, want one call", got.ToolCalls)
	}
	if got.ToolCalls[0].Name != "get_current_availability" {
		t.Errorf("ToolCalls[0].Name = %q, want get_current_availability", got.ToolCalls[0].Name)
	}
	if got.ToolCalls[0].Arguments["start"] != "2026-09-01T09:00:00Z" {
		t.Errorf("ToolCalls[0].Arguments = %v, want start argument", got.ToolCalls[0].Arguments)
	}
}

func TestFromResponseEmptyCandidates(t *testing.T) {
	got := fromResponse(&genai.GenerateContentResponse{})
	if got.Text != "" || len(got.ToolCalls) != 0 {
		t.Errorf("fromResponse(empty) = %+v, want empty response", got)
	}
}

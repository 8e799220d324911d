package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/teemow/schedassist/internal/conversation"
	"github.com/teemow/schedassist/internal/tools"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// Client implements conversation.ModelClient against the Gemini API.
type Client struct {
	client    *genai.Client
	modelName string
}

// Config holds the Gemini connection settings.
type Config struct {
	APIKey string
	Model  string
}

// NewClient creates a Gemini-backed model client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key must be set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Client{client: client, modelName: cfg.Model}, nil
}

// Generate sends the conversation to Gemini and returns the reply text along
// with any function calls the model requested.
func (c *Client) Generate(ctx context.Context, req conversation.ModelRequest) (*conversation.ModelResponse, error) {
	contents := toContents(req.Turns)

	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	return fromResponse(res), nil
}

// toContents maps conversation turns onto Gemini contents. Tool results
// become function response parts attributed to the user role, which is how
// the API expects tool outputs to be fed back.
func toContents(turns []conversation.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleModel))
		case conversation.RoleToolResult:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     turn.ToolName,
						Response: map[string]any{"output": turn.Text},
					},
				}},
			})
		default:
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleUser))
		}
	}
	return contents
}

func toDeclarations(specs []tools.Spec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decl := &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if len(spec.Parameters.Properties) > 0 {
			properties := make(map[string]*genai.Schema, len(spec.Parameters.Properties))
			for name, prop := range spec.Parameters.Properties {
				properties[name] = &genai.Schema{
					Type:        toSchemaType(prop.Type),
					Description: prop.Description,
				}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   spec.Parameters.Required,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func toSchemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func fromResponse(res *genai.GenerateContentResponse) *conversation.ModelResponse {
	out := &conversation.ModelResponse{Text: res.Text()}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return out
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, conversation.ToolCall{
			Name:      part.FunctionCall.Name,
			Arguments: part.FunctionCall.Args,
		})
	}
	return out
}

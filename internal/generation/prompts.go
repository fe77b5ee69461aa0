package generation

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const characterInstruction = "You are a master fantasy writer and world builder. " +
	"Create unique, deep, and interesting characters for a role-playing game or novel. " +
	"Return the result in JSON format."

var characterSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        {Type: genai.TypeString},
		"role":        {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"traits": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"name", "role", "description", "traits"},
}

var placeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        {Type: genai.TypeString},
		"type":        {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
	},
	Required: []string{"name", "type", "description"},
}

type request struct {
	content string
	config  *genai.GenerateContentConfig
}

func characterRequest(prompt string) request {
	return request{
		content: prompt,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(characterInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    characterSchema,
		},
	}
}

// Places carry their instruction in the user content.
func placeRequest(prompt string) request {
	return request{
		content: fmt.Sprintf("Describe a fantasy location based on this idea: %s. Return a JSON with name, type, and description.", prompt),
		config: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   placeSchema,
		},
	}
}

// CharacterPrompt builds the prompt for a character from the form fields.
func CharacterPrompt(name, hint string) string {
	p := fmt.Sprintf("Create a fantasy character named %s.", strings.TrimSpace(name))
	if hint = strings.TrimSpace(hint); hint != "" {
		p += " Description hint: " + hint
	}
	return p
}

// PlacePrompt builds the prompt for a place from the form fields.
func PlacePrompt(name, context string) string {
	p := fmt.Sprintf("Create a place named %s.", strings.TrimSpace(name))
	if context = strings.TrimSpace(context); context != "" {
		p += " Context: " + context
	}
	return p
}

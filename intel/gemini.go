// intel/gemini.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/log"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Gemini implements MissionGenerator and ControlResponder using the
// Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	lg     *log.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, lg *log.Logger) (*Gemini, error) {
	return newGemini(ctx, apiKey, model, genai.HTTPOptions{}, lg)
}

// newGemini allows the HTTP options to be given; tests use them to point
// the client at a local server.
func newGemini(ctx context.Context, apiKey, model string, httpOpts genai.HTTPOptions, lg *log.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoCredentials
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, lg: lg}, nil
}

func MissionPrompt(s flight.AircraftState) string {
	return fmt.Sprintf("Generate a short flight mission for a simulator.\n"+
		"Current status: Speed %.1f knots, Altitude %.0f ft.\n"+
		"Format as JSON with keys: id, title, description, objective.", s.Airspeed, s.Altitude)
}

func ControlPersona(s flight.AircraftState) string {
	throttle := strconv.FormatFloat(float64(s.Throttle*100), 'f', -1, 32)
	return "You are 'Control', a futuristic radio tower operator for a top-tier fighter pilot.\n" +
		"The pilot is flying a high-performance jet. Your tone is professional, authoritative, but supportive.\n" +
		"Keep responses brief and radio-themed (e.g., 'Copy that', 'Over').\n" +
		"Current Flight Data:\n" +
		fmt.Sprintf("Altitude: %.0f ft\n", s.Altitude) +
		fmt.Sprintf("Airspeed: %.1f kts\n", s.Airspeed) +
		"Throttle: " + throttle + "%"
}

var missionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"id":          {Type: genai.TypeString},
		"title":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"objective":   {Type: genai.TypeString},
	},
	Required: []string{"id", "title", "description", "objective"},
}

// GenerateMission asks the model for new orders. If the request itself
// fails, the error is returned. If the model replies with something that
// isn't a mission, FallbackMission is returned instead.
func (g *Gemini) GenerateMission(ctx context.Context, s flight.AircraftState) (Mission, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{userContent(MissionPrompt(s))},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   missionSchema,
		})
	if err != nil {
		return Mission{}, fmt.Errorf("failed to generate mission: %w", err)
	}

	var m Mission
	text := strings.TrimSpace(responseText(resp))
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		g.lg.Warn("unparseable mission; using fallback", "error", err, "text", text)
		return FallbackMission, nil
	}
	m.Completed = false
	return m, nil
}

// ControlResponse returns Control's reply to the most recent message in
// history. Each call opens a fresh chat whose system instruction carries
// the current flight data, so only that message is sent.
func (g *Gemini) ControlResponse(ctx context.Context, history []Message, s flight.AircraftState) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyMessage
	}
	last := history[len(history)-1]

	chat, err := g.client.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: ControlPersona(s)}}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open Control chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	if err != nil {
		return "", fmt.Errorf("failed to get Control response: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func userContent(text string) *genai.Content {
	return &genai.Content{
		Role:  string(RoleUser),
		Parts: []*genai.Part{{Text: text}},
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/rules"
)

// Analysis is the structured narrative returned next to rule findings.
type Analysis struct {
	IsAnomalous      bool     `json:"isAnomalous"`
	Explanation      string   `json:"explanation"`
	SuggestedActions []string `json:"suggestedActions"`
}

const healthPersona = `You are a cautious clinical assistant for family caregivers.
You never diagnose. Reply with a single JSON object and nothing else:
{"isAnomalous": boolean, "explanation": string, "suggestedActions": [string]}`

const chatPersona = `You are CareConnect, a warm and practical assistant for people caring
for an elderly relative. Keep answers short. For anything that sounds like an
emergency, tell the user to call local emergency services first.`

// Advisor turns domain inputs into prompts and parses the replies.
type Advisor struct {
	completer Completer
}

func NewAdvisor(c Completer) *Advisor {
	return &Advisor{completer: c}
}

// AnalyzeHealth asks for a narrative over readings (most recent first) and
// the findings the rule engine already produced.
func (a *Advisor) AnalyzeHealth(ctx context.Context, readings []*models.HealthReading, findings []rules.Finding) (*Analysis, error) {
	text, err := a.completer.Complete(ctx, healthPersona, healthPrompt(readings, findings))
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(text)
}

// Chat answers a free-form caregiver question.
func (a *Advisor) Chat(ctx context.Context, message string) (string, error) {
	reply, err := a.completer.Complete(ctx, chatPersona, message)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func healthPrompt(readings []*models.HealthReading, findings []rules.Finding) string {
	var sb strings.Builder
	sb.WriteString("Recent readings, most recent first:\n")
	for _, r := range readings {
		sb.WriteString("- ")
		sb.WriteString(r.TakenAt.UTC().Format(time.RFC3339))
		sb.WriteString(" ")
		sb.WriteString(r.Metric)
		sb.WriteString(" = ")
		switch {
		case r.ValueNum != nil:
			fmt.Fprintf(&sb, "%g", *r.ValueNum)
		case len(r.ValueJSON) > 0:
			sb.Write(r.ValueJSON)
		default:
			sb.WriteString("?")
		}
		if r.Unit != "" {
			sb.WriteString(" ")
			sb.WriteString(r.Unit)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRule engine findings:\n")
	if len(findings) == 0 {
		sb.WriteString("- none\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", f.Level, f.RuleID, f.Message)
	}
	return sb.String()
}

// ParseAnalysis extracts the JSON object from a model reply, tolerating
// markdown fences and surrounding prose.
func ParseAnalysis(text string) (*Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in ai reply")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("decode ai reply: %w", err)
	}
	if a.SuggestedActions == nil {
		a.SuggestedActions = []string{}
	}
	return &a, nil
}

/*
Package ai annotates accepted breach records through the Gemini API when a
record is missing its severity or data types.
*/
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const maxPromptContent = 2000

type Annotation struct {
	Severity  string   `json:"severity"`
	DataTypes []string `json:"dataTypes"`
	Type      string   `json:"type"`
}

var systemInstruction = `
You are a threat intelligence analyst classifying short data breach reports posted to a public monitoring channel.

For the report you receive, return:
* "severity": one of low, medium, high, critical. Use the number of affected people and the sensitivity of the exposed data. Passwords, payment data and national identifiers are at least high.
* "dataTypes": the categories of exposed data, each one of emails, passwords, personalInfo, financial, other. Use an empty list when nothing is stated.
* "type": one of DataLeak, SecurityBreach, PrivacyViolation, Ransomware, Malware, Phishing, DDoS, Other.

Only use what the report says. Do not guess company names or numbers.
`

// generateFunc sends one prompt and returns the raw JSON text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

type Annotator struct {
	generate   generateFunc
	maxRecords int
	log        *zap.SugaredLogger
}

// NewAnnotator creates a Gemini-backed annotator. At most maxRecords
// records are sent per call to Annotate.
func NewAnnotator(ctx context.Context, apiKey, modelName string, maxRecords int, log *zap.SugaredLogger) (*Annotator, error) {
	if apiKey == "" {
		return nil, errors.InvalidConfig("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			{
				Parts: []*genai.Part{{Text: prompt}},
				Role:  "user",
			},
		}

		resp, err := client.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction}},
			},
			ResponseMIMEType: "application/json",
			ResponseSchema:   getResponseSchema(),
		})
		if err != nil {
			return "", errors.Wrap(err, "gemini API call failed")
		}
		return resp.Text(), nil
	}

	return newAnnotator(generate, maxRecords, log), nil
}

func newAnnotator(generate generateFunc, maxRecords int, log *zap.SugaredLogger) *Annotator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Annotator{generate: generate, maxRecords: maxRecords, log: log}
}

// Annotate fills missing severity and data types in place. Failures are
// logged and leave the record unchanged.
func (a *Annotator) Annotate(ctx context.Context, records []types.BreachRecord) int {
	annotated := 0
	sent := 0
	for i := range records {
		r := &records[i]
		if r.Severity != "" && len(r.DataTypes) > 0 {
			continue
		}
		if sent >= a.maxRecords || ctx.Err() != nil {
			break
		}
		sent++

		ann, err := a.annotate(ctx, r.Content)
		if err != nil {
			a.log.Warnw("AI annotation failed", "hash_id", r.HashID, "error", err)
			continue
		}
		if apply(r, ann) {
			annotated++
		}
	}

	if sent > 0 {
		a.log.Infow("AI annotation finished", "sent", sent, "annotated", annotated)
	}
	return annotated
}

func (a *Annotator) annotate(ctx context.Context, content string) (*Annotation, error) {
	if r := []rune(content); len(r) > maxPromptContent {
		content = string(r[:maxPromptContent])
	}
	prompt := fmt.Sprintf("Classify the following breach report:\n\n---\n%s", content)

	respText, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var ann Annotation
	if err := json.Unmarshal([]byte(strings.TrimSpace(respText)), &ann); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to unmarshal gemini JSON response %q", respText), errors.ErrMalformed)
	}
	return &ann, nil
}

// apply copies the in-enum parts of ann into r's empty fields. The record
// type is only replaced when it is still the generic default.
func apply(r *types.BreachRecord, ann *Annotation) bool {
	changed := false

	if r.Severity == "" {
		if sev, ok := types.ParseSeverity(ann.Severity); ok {
			r.Severity = sev
			changed = true
		}
	}

	if len(r.DataTypes) == 0 {
		seen := make(map[types.DataType]bool)
		for _, label := range ann.DataTypes {
			dt, ok := types.ParseDataType(label)
			if !ok || seen[dt] {
				continue
			}
			seen[dt] = true
			r.DataTypes = append(r.DataTypes, dt)
			changed = true
		}
	}

	if r.Type == types.TypeOther {
		if bt, ok := types.ParseBreachType(ann.Type); ok && bt != types.TypeOther {
			r.Type = bt
			changed = true
		}
	}
	return changed
}

func getResponseSchema() *genai.Schema {
	severities := make([]string, 0, len(types.Severities))
	for _, s := range types.Severities {
		severities = append(severities, string(s))
	}
	dataTypes := make([]string, 0, len(types.DataTypes))
	for _, d := range types.DataTypes {
		dataTypes = append(dataTypes, string(d))
	}
	breachTypes := make([]string, 0, len(types.BreachTypes))
	for _, b := range types.BreachTypes {
		breachTypes = append(breachTypes, string(b))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"severity": {
				Type:        genai.TypeString,
				Enum:        severities,
				Description: "Impact of the breach.",
			},
			"dataTypes": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString, Enum: dataTypes},
				Description: "Categories of exposed data.",
			},
			"type": {
				Type:        genai.TypeString,
				Enum:        breachTypes,
				Description: "Kind of incident.",
			},
		},
		Required: []string{"severity", "dataTypes", "type"},
	}
}

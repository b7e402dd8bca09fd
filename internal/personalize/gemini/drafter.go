// Package gemini drafts outreach emails with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/shpitdev/email-pattern-finder/internal/personalize"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// Product is the offer pitched in every email.
	Product string
}

type Drafter struct {
	client  *genai.Client
	model   string
	product string
}

var _ personalize.Drafter = (*Drafter)(nil)

func New(ctx context.Context, cfg Config) (*Drafter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Drafter{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		product: strings.TrimSpace(cfg.Product),
	}, nil
}

type responseSchema struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"subject": {Type: genai.TypeString},
		"body":    {Type: genai.TypeString},
	},
	Required: []string{"subject", "body"},
}

func (d *Drafter) Draft(ctx context.Context, p personalize.Prospect) (personalize.Draft, error) {
	base := personalize.Draft{Model: d.model}

	resp, err := d.client.Models.GenerateContent(
		ctx,
		d.model,
		genai.Text(personalize.BuildPrompt(p, d.product)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   outputSchema,
		},
	)
	if err != nil {
		return base, classifyErr(err)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return base, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	body := strings.TrimSpace(parsed.Body)
	if body == "" {
		return base, errors.New("gemini: empty body")
	}
	return personalize.Draft{
		Subject: strings.TrimSpace(parsed.Subject),
		Body:    body,
		Model:   d.model,
	}, nil
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &verify.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &verify.TransientError{Err: err}
	}
	return err
}

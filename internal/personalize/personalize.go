// Package personalize drafts a short cold email for each lead with a validated address.
package personalize

import (
	"context"
	"errors"
	"strings"

	"github.com/shpitdev/email-pattern-finder/internal/lead"
	"github.com/shpitdev/email-pattern-finder/internal/pipeline"
)

// Prospect is what a drafter knows about the recipient.
type Prospect struct {
	Email         string
	FirstName     string
	LastName      string
	CompanyDomain string

	// Attributes are the passthrough columns of the lead (title, company, about, ...).
	Attributes []lead.Column
}

// Attr returns the first attribute whose name matches (case-insensitive).
func (p Prospect) Attr(name string) string {
	for _, c := range p.Attributes {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

// Draft is a generated email.
type Draft struct {
	Subject string
	Body    string
	Model   string
}

// Drafter writes one email.
type Drafter interface {
	Draft(ctx context.Context, p Prospect) (Draft, error)
}

// ProspectsFromRows keeps the rows that carry a validated address.
func ProspectsFromRows(rows []pipeline.Row) []Prospect {
	var out []Prospect
	for _, r := range rows {
		if !r.Found() {
			continue
		}
		out = append(out, Prospect{
			Email:         strings.TrimSpace(r.ValidatedEmail),
			FirstName:     strings.TrimSpace(r.FirstName),
			LastName:      strings.TrimSpace(r.LastName),
			CompanyDomain: strings.TrimSpace(r.CompanyDomain),
			Attributes:    r.Extra,
		})
	}
	return out
}

var errEmptyEmail = errors.New("empty email")

const aboutLimit = 600

// BuildPrompt renders the drafting instructions for p. product describes what is being
// offered; empty fields are left for the model to skip.
func BuildPrompt(p Prospect, product string) string {
	product = strings.TrimSpace(product)
	if product == "" {
		product = "(not provided; keep the value proposition generic)"
	}
	about := p.Attr("about")
	if r := []rune(about); len(r) > aboutLimit {
		about = string(r[:aboutLimit])
	}
	company := p.Attr("company")
	if company == "" {
		company = p.CompanyDomain
	}

	var b strings.Builder
	b.WriteString("You are a sales outreach specialist. Craft a concise, highly personalized cold email ")
	b.WriteString("that feels written just for this person. Limit the body to 140-160 words, avoid fluff, and make one clear CTA.\n\n")
	b.WriteString("Use the data below thoughtfully. Reference only what is relevant and authentic; skip empty fields.\n")
	b.WriteString("- Name: " + strings.TrimSpace(p.FirstName+" "+p.LastName) + "\n")
	b.WriteString("- Title: " + p.Attr("title") + "\n")
	b.WriteString("- Location: " + p.Attr("location") + "\n")
	b.WriteString("- Education: " + p.Attr("education") + "\n")
	b.WriteString("- About/Bio: " + about + "\n")
	b.WriteString("- Company: " + company + "\n")
	b.WriteString("- Company about: " + p.Attr("company_about") + "\n")
	b.WriteString("- Company industry: " + p.Attr("company_industry") + "\n")
	b.WriteString("- Company size: " + p.Attr("company_size") + "\n")
	b.WriteString("- Company website: " + p.Attr("company_website") + "\n\n")
	b.WriteString("Product: " + product + "\n\n")
	b.WriteString("Structure:\n")
	b.WriteString("1) One-line opener that shows you have read their background (title, location, education, or company mission; pick the best hook).\n")
	b.WriteString("2) One-sentence bridge linking their context to the product's specific value (metrics, outcomes, or workflow saved).\n")
	b.WriteString("3) One short bullet or micro-example that proves the benefit, without jargon.\n")
	b.WriteString("4) Close with a single low-friction CTA (e.g. a 10-minute intro this week) and offer to share a tailored example.\n")
	b.WriteString("Keep the tone warm, professional and direct.\n\n")
	b.WriteString("Return ONLY a JSON object with keys \"subject\" (under 8 words) and \"body\" (plain text, no signature placeholder).")
	return b.String()
}

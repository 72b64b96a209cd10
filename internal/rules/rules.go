// Package rules holds the data-driven tables that drive classification and
// entity creation: seller domains, the system-sender denylist, and the
// ordered keyword tables for action categories and sales stages.
package rules

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// CategoryRule maps one sales-context category to its trigger keywords.
// Rules are evaluated in slice order; the first keyword hit wins.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// StageRule maps one sales stage to its indicator keywords. Evaluated in
// slice order, first hit wins.
type StageRule struct {
	Stage    string   `yaml:"stage"`
	Keywords []string `yaml:"keywords"`
}

// Ruleset is the full table configuration for one engine run. All string
// comparisons against it are case-insensitive; Load and Default keep every
// entry lower-cased.
type Ruleset struct {
	SellerDomains        []string       `yaml:"seller_domains"`
	SystemSenderPrefixes []string       `yaml:"system_sender_prefixes"`
	Categories           []CategoryRule `yaml:"categories"`
	Stages               []StageRule    `yaml:"stages"`
}

// Default returns the built-in ruleset. Category order is significant:
// follow_up precedes demo so a "demo follow up" subject classifies as a
// follow-up, and proposal carries the pricing keywords.
func Default() *Ruleset {
	return &Ruleset{
		SystemSenderPrefixes: []string{
			"no-reply", "noreply", "do-not-reply", "donotreply",
			"notification", "notifications", "support", "billing",
			"marketing", "newsletter", "mailer-daemon", "postmaster",
			"alerts", "bounce", "info",
		},
		Categories: []CategoryRule{
			{Name: "cold_outreach", Keywords: []string{
				"introduction", "introducing", "reaching out", "quick intro",
				"connect with you",
			}},
			{Name: "qualification", Keywords: []string{
				"discovery call", "qualification", "requirements", "budget",
				"decision maker", "use case",
			}},
			{Name: "follow_up", Keywords: []string{
				"follow up", "follow-up", "following up", "circling back",
				"checking in", "touching base",
			}},
			{Name: "proposal", Keywords: []string{
				"proposal", "pricing", "quote", "quotation", "estimate",
			}},
			{Name: "demo", Keywords: []string{
				"demo", "demonstration", "walkthrough", "product tour",
			}},
			{Name: "objection_handling", Keywords: []string{
				"objection", "concern", "hesitation", "pushback", "competitor",
			}},
			{Name: "contract", Keywords: []string{
				"contract", "agreement", "redlines", "legal review",
			}},
			{Name: "closing", Keywords: []string{
				"signature", "signed", "docusign", "countersign", "final step",
			}},
			{Name: "implementation", Keywords: []string{
				"implementation", "onboarding", "kickoff", "kick-off",
				"go-live", "rollout",
			}},
			{Name: "support", Keywords: []string{
				"support ticket", "troubleshoot", "not working", "bug",
				"issue with",
			}},
			{Name: "upsell", Keywords: []string{
				"upgrade", "upsell", "add-on", "additional seats", "expansion",
			}},
			{Name: "renewal", Keywords: []string{
				"renewal", "renew", "expiring", "expiration",
			}},
		},
		Stages: []StageRule{
			{Stage: "customer", Keywords: []string{
				"invoice", "your account", "existing customer", "renewal",
				"thanks for your business",
			}},
			{Stage: "opportunity", Keywords: []string{
				"proposal", "pricing", "quote", "contract", "negotiation",
			}},
			{Stage: "prospect", Keywords: []string{
				"demo", "meeting", "discovery", "interested", "evaluation",
			}},
		},
	}
}

// IsSellerDomain reports whether domain is one of the seller's own sending
// domains. Expects a lower-cased domain, as the extractor produces.
func (r *Ruleset) IsSellerDomain(domain string) bool {
	for _, d := range r.SellerDomains {
		if domain == d {
			return true
		}
	}
	return false
}

// IsSystemSender reports whether an address local part matches the
// automated-sender denylist. Prefix match, so "no-reply" also catches
// "no-reply-billing".
func (r *Ruleset) IsSystemSender(localPart string) bool {
	for _, p := range r.SystemSenderPrefixes {
		if strings.HasPrefix(localPart, p) {
			return true
		}
	}
	return false
}

// MergeSellerDomains appends domains (lower-cased, de-duplicated) to the
// ruleset's seller domain list. Used to fold config-supplied domains into a
// loaded ruleset.
func (r *Ruleset) MergeSellerDomains(domains []string) {
	seen := make(map[string]bool, len(r.SellerDomains))
	for _, d := range r.SellerDomains {
		seen[d] = true
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		r.SellerDomains = append(r.SellerDomains, d)
		seen[d] = true
	}
}

// Validate checks that the ruleset is internally consistent: every category
// and stage is named, carries at least one keyword, and names are unique.
func (r *Ruleset) Validate() error {
	var errs []string

	if len(r.Categories) == 0 {
		errs = append(errs, "categories must not be empty")
	}
	seen := make(map[string]bool, len(r.Categories))
	for i, c := range r.Categories {
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("categories[%d] has no name", i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Sprintf("duplicate category %q", c.Name))
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("category %q has no keywords", c.Name))
		}
		for _, k := range c.Keywords {
			if strings.TrimSpace(k) == "" {
				errs = append(errs, fmt.Sprintf("category %q has an empty keyword", c.Name))
				break
			}
		}
	}

	stages := make(map[string]bool, len(r.Stages))
	for i, s := range r.Stages {
		if s.Stage == "" {
			errs = append(errs, fmt.Sprintf("stages[%d] has no stage name", i))
			continue
		}
		if stages[s.Stage] {
			errs = append(errs, fmt.Sprintf("duplicate stage %q", s.Stage))
		}
		stages[s.Stage] = true
		if len(s.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("stage %q has no keywords", s.Stage))
		}
	}

	for _, d := range r.SellerDomains {
		if strings.TrimSpace(d) == "" {
			errs = append(errs, "seller_domains contains an empty entry")
			break
		}
	}
	for _, p := range r.SystemSenderPrefixes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, "system_sender_prefixes contains an empty entry")
			break
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("rules: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// normalize lower-cases every domain, prefix and keyword so matching can
// assume lower-cased input.
func (r *Ruleset) normalize() {
	for i, d := range r.SellerDomains {
		r.SellerDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	for i, p := range r.SystemSenderPrefixes {
		r.SystemSenderPrefixes[i] = strings.ToLower(strings.TrimSpace(p))
	}
	for i := range r.Categories {
		for j, k := range r.Categories[i].Keywords {
			r.Categories[i].Keywords[j] = strings.ToLower(k)
		}
	}
	for i := range r.Stages {
		for j, k := range r.Stages[i].Keywords {
			r.Stages[i].Keywords[j] = strings.ToLower(k)
		}
	}
}

package engine

import (
	"strings"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/rules"
)

// Classification is the derived category, stored type, direction and sales
// stage for one email. Deterministic given the same email and ruleset.
type Classification struct {
	Category  string
	Type      string
	Direction model.Direction
	Stage     string
}

// DetectDirection reports outbound when the sender address sits at one of
// the seller's own domains, inbound otherwise.
func DetectDirection(sender string, rs *rules.Ruleset) model.Direction {
	if rs.IsSellerDomain(Domain(NormalizeAddress(sender))) {
		return model.DirectionOutbound
	}
	return model.DirectionInbound
}

// ClassifyEmail scans subject and body against the ordered category table;
// the first category with any keyword hit wins. With no hit the type falls
// back to reply/forward/email from the subject prefix. Inbound emails get
// the received_ qualifier on the stored type. Stage inference runs the same
// scan over the stage table and defaults to lead.
func ClassifyEmail(email *model.EmailMessage, rs *rules.Ruleset) Classification {
	direction := DetectDirection(email.Sender, rs)
	haystack := strings.ToLower(email.Subject) + "\n" + strings.ToLower(email.Body)

	category := matchCategory(haystack, rs.Categories)
	if category == "" {
		category = fallbackCategory(email.Subject)
	}

	typ := category
	if direction == model.DirectionInbound {
		typ = model.ReceivedPrefix + category
	}

	return Classification{
		Category:  category,
		Type:      typ,
		Direction: direction,
		Stage:     matchStage(haystack, rs.Stages),
	}
}

func matchCategory(haystack string, categories []rules.CategoryRule) string {
	for _, c := range categories {
		for _, k := range c.Keywords {
			if k != "" && strings.Contains(haystack, k) {
				return c.Name
			}
		}
	}
	return ""
}

// fallbackCategory derives a generic type from reply/forward subject
// prefixes when no keyword matched.
func fallbackCategory(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	switch {
	case strings.HasPrefix(s, "re:"):
		return model.ActionTypeReply
	case strings.HasPrefix(s, "fw:"), strings.HasPrefix(s, "fwd:"):
		return model.ActionTypeForward
	default:
		return model.ActionTypeEmail
	}
}

func matchStage(haystack string, stages []rules.StageRule) string {
	for _, s := range stages {
		for _, k := range s.Keywords {
			if k != "" && strings.Contains(haystack, k) {
				return s.Stage
			}
		}
	}
	return model.StageLead
}

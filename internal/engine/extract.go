// Package engine implements the email attribution pipeline: participant
// extraction, entity matching, action resolution, classification, entity
// creation and idempotent link writing.
package engine

import (
	"net/mail"
	"strings"

	"github.com/sells-group/attribution-cli/internal/model"
)

// NormalizeAddress strips a display name ("Jane Doe <jane@newco.com>"),
// trims whitespace and lower-cases the bare address. Returns "" for anything
// that does not contain an address.
func NormalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if parsed, err := mail.ParseAddress(raw); err == nil {
		raw = parsed.Address
	} else if start := strings.LastIndex(raw, "<"); start >= 0 {
		// Not RFC 5322 but still angle-bracketed; salvage the inner part.
		if end := strings.Index(raw[start:], ">"); end > 0 {
			raw = raw[start+1 : start+end]
		}
	}

	raw = strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(raw, "@") {
		return ""
	}
	return raw
}

// ExtractParticipants returns every address on the email, sender first, then
// recipients, cc and bcc in their stored order, normalized and de-duplicated.
// Unparseable entries are dropped; an email with empty recipient lists still
// yields its sender.
func ExtractParticipants(email *model.EmailMessage) []string {
	out := make([]string, 0, 1+len(email.Recipients)+len(email.CC)+len(email.BCC))
	seen := make(map[string]bool)

	add := func(raw string) {
		addr := NormalizeAddress(raw)
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}

	add(email.Sender)
	for _, r := range email.Recipients {
		add(r)
	}
	for _, r := range email.CC {
		add(r)
	}
	for _, r := range email.BCC {
		add(r)
	}
	return out
}

// ExtractRecipients is ExtractParticipants without the sender: the addresses
// the email was delivered to.
func ExtractRecipients(email *model.EmailMessage) []string {
	out := make([]string, 0, len(email.Recipients)+len(email.CC)+len(email.BCC))
	seen := make(map[string]bool)

	for _, list := range [][]string{email.Recipients, email.CC, email.BCC} {
		for _, raw := range list {
			addr := NormalizeAddress(raw)
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

// Domain returns the part after the last "@" of a normalized address, or ""
// when there is none.
func Domain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return address[at+1:]
}

// LocalPart returns the part before the last "@" of a normalized address.
func LocalPart(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return ""
	}
	return address[:at]
}

// leadingLabel returns the first dot-separated label of a domain:
// "newco.com" -> "newco".
func leadingLabel(domain string) string {
	if i := strings.Index(domain, "."); i > 0 {
		return domain[:i]
	}
	return domain
}

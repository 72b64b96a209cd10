package engine

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/attribution-cli/internal/model"
)

// SubjectTokens splits a subject into lower-cased words longer than three
// characters, de-duplicated in order. "re"/"fw"/"fwd" prefixes fall out
// naturally since they are too short.
func SubjectTokens(subject string) []string {
	fields := strings.FieldsFunc(strings.ToLower(subject), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 3 || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// ResolveAction finds the existing Action representing the same conversation
// as the email, or nil when none qualifies. Rules are tried in order across
// all candidates before falling through to the next:
//
//  1. provider thread id equality, when the email carries one
//  2. subject token overlap of at least two words
//  3. the candidate references the matched Person and one of that Person's
//     addresses appears among the email's recipients
//  4. the candidate references the matched Company and a recipient address
//     corresponds to that Company
//
// Token overlap is a heuristic: unrelated conversations sharing two generic
// words will merge, and a fully reworded reply will not. Callers accept both.
func ResolveAction(email *model.EmailMessage, person *model.Person, company *model.Company, candidates []model.Action) *model.Action {
	if len(candidates) == 0 {
		return nil
	}

	if email.ThreadID != "" {
		for i := range candidates {
			meta := candidates[i].Metadata
			if meta != nil && meta.ThreadID == email.ThreadID {
				return &candidates[i]
			}
		}
	}

	tokens := SubjectTokens(email.Subject)
	if len(tokens) >= 2 {
		for i := range candidates {
			if tokenOverlap(tokens, SubjectTokens(candidates[i].Subject)) >= 2 {
				return &candidates[i]
			}
		}
	}

	recipients := ExtractRecipients(email)

	if person != nil && addressIntersects(person.EmailAddresses(), recipients) {
		for i := range candidates {
			if candidates[i].PersonID != "" && candidates[i].PersonID == person.ID {
				return &candidates[i]
			}
		}
	}

	if company != nil && anyAddressMatchesCompany(recipients, company) {
		for i := range candidates {
			if candidates[i].CompanyID != "" && candidates[i].CompanyID == company.ID {
				return &candidates[i]
			}
		}
	}

	return nil
}

// Fingerprint derives the conversation identity an Action row is unique on:
// the provider thread id when present, else the sorted subject token set,
// else the email id (token-less subjects never merge).
func Fingerprint(email *model.EmailMessage) string {
	var basis string
	tokens := SubjectTokens(email.Subject)
	switch {
	case email.ThreadID != "":
		basis = "thread|" + email.ThreadID
	case len(tokens) >= 2:
		sorted := append([]string(nil), tokens...)
		sort.Strings(sorted)
		basis = "subject|" + strings.Join(sorted, "|")
	default:
		basis = "email|" + email.ID
	}

	h := sha256.Sum256([]byte(basis))
	return fmt.Sprintf("%x", h)
}

func tokenOverlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	for _, t := range b {
		if set[t] {
			n++
		}
	}
	return n
}

func addressIntersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, addr := range a {
		set[strings.ToLower(addr)] = true
	}
	for _, addr := range b {
		if set[addr] {
			return true
		}
	}
	return false
}

func anyAddressMatchesCompany(addrs []string, company *model.Company) bool {
	for _, addr := range addrs {
		if addressMatchesCompany(addr, company) {
			return true
		}
	}
	return false
}

// addressMatchesCompany reports whether a normalized address plausibly
// belongs to the company: its primary address, its domain, or a local
// part/domain label matching the normalized company name.
func addressMatchesCompany(addr string, company *model.Company) bool {
	if company.PrimaryEmail != "" && addr == strings.ToLower(company.PrimaryEmail) {
		return true
	}

	domain := Domain(addr)
	if domain == "" {
		return false
	}
	if company.Domain != "" && domain == strings.ToLower(company.Domain) {
		return true
	}

	name := CompanyNameToken(company.Name)
	if name == "" {
		return false
	}
	return CompanyNameToken(leadingLabel(domain)) == name || CompanyNameToken(LocalPart(addr)) == name
}

// CompanyNameToken normalizes a company name or domain label for equality
// comparison: lower-cased with spaces and hyphens removed. Mirrors the
// store's name-comparison expression.
func CompanyNameToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

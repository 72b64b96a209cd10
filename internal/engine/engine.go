package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/config"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/rules"
	"github.com/sells-group/attribution-cli/internal/store"
)

// Engine wires the attribution stages together over one store: extract,
// match, resolve, classify, create, link.
type Engine struct {
	cfg   *config.Config
	store store.Store
	rules *rules.Ruleset
}

// New creates an Engine. The ruleset must already be normalized and
// validated; rules.Load and rules.Default both guarantee that.
func New(cfg *config.Config, st store.Store, rs *rules.Ruleset) *Engine {
	return &Engine{cfg: cfg, store: st, rules: rs}
}

// EmailOutcome summarizes what processing one email wrote.
type EmailOutcome struct {
	PersonLinks      int
	CompanyLinks     int
	ActionLinks      int
	PersonsCreated   int
	CompaniesCreated int
	ActionsCreated   int

	HasPerson  bool
	HasCompany bool
	HasAction  bool
}

// ProcessEmail runs the full attribution flow for one email. Entity and
// link writes are individually idempotent, so reprocessing is safe. An
// error return means the store itself failed; per-entity creation failures
// are logged and absorbed.
func (e *Engine) ProcessEmail(ctx context.Context, email *model.EmailMessage) (*EmailOutcome, error) {
	log := zap.L().With(zap.String("email", email.ID), zap.String("workspace", email.WorkspaceID))
	out := &EmailOutcome{}

	participants := ExtractParticipants(email)
	if len(participants) == 0 {
		log.Warn("engine: no parseable participants, skipping")
		return out, nil
	}

	match, err := MatchEntities(ctx, e.store, email.WorkspaceID, participants)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListActions(ctx, email.WorkspaceID, e.cfg.Engine.CandidateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list candidate actions")
	}

	action := ResolveAction(email, match.FirstPerson(), match.FirstCompany(), candidates)
	if action == nil {
		action, out.ActionsCreated = e.createAction(ctx, email, match)
	}

	persons, companies := match.Persons, match.Companies
	if match.Empty() {
		created := CreateMissingEntities(ctx, e.store, email.WorkspaceID, participants, e.rules)
		if created.Person != nil {
			persons = append(persons, *created.Person)
			if created.PersonCreated {
				out.PersonsCreated++
			}
		}
		if created.Company != nil {
			companies = append(companies, *created.Company)
			if created.CompanyCreated {
				out.CompaniesCreated++
			}
		}
	}

	links := WriteLinks(ctx, e.store, email, persons, companies, action)
	out.PersonLinks = links.PersonLinks
	out.CompanyLinks = links.CompanyLinks
	out.ActionLinks = links.ActionLinks
	out.HasPerson = len(persons) > 0
	out.HasCompany = len(companies) > 0
	out.HasAction = action != nil

	log.Debug("engine: email processed",
		zap.Int("persons", len(persons)),
		zap.Int("companies", len(companies)),
		zap.Bool("action", action != nil),
	)
	return out, nil
}

// createAction classifies the email and persists the Action for its
// conversation. A fingerprint conflict means another run created it first;
// the existing row is fetched and reused. Returns the action (nil when even
// that failed) and 1 when a new row was written.
func (e *Engine) createAction(ctx context.Context, email *model.EmailMessage, match *MatchResult) (*model.Action, int) {
	log := zap.L().With(zap.String("email", email.ID))
	cls := ClassifyEmail(email, e.rules)

	completedAt := email.SentAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	action := &model.Action{
		WorkspaceID: email.WorkspaceID,
		Type:        cls.Type,
		Subject:     email.Subject,
		CompletedAt: completedAt,
		Direction:   cls.Direction,
		Stage:       cls.Stage,
		Fingerprint: Fingerprint(email),
		Metadata:    &model.ActionMetadata{EmailID: email.ID, ThreadID: email.ThreadID},
	}
	if p := match.FirstPerson(); p != nil {
		action.PersonID = p.ID
	}
	if c := match.FirstCompany(); c != nil {
		action.CompanyID = c.ID
	}

	created, err := e.store.CreateAction(ctx, action)
	if err != nil {
		log.Warn("engine: action create failed", zap.Error(err))
		return nil, 0
	}
	if created {
		log.Info("engine: action created",
			zap.String("action", action.ID),
			zap.String("type", action.Type),
			zap.String("stage", action.Stage),
		)
		return action, 1
	}

	existing, err := e.store.FindActionByFingerprint(ctx, email.WorkspaceID, action.Fingerprint)
	if err != nil {
		log.Warn("engine: action re-read failed", zap.Error(err))
		return nil, 0
	}
	if existing == nil {
		log.Warn("engine: fingerprint conflict but no existing action", zap.String("fingerprint", action.Fingerprint))
		return nil, 0
	}
	return existing, 0
}

// ProcessWorkspace runs the engine over every email in the workspace, one
// page at a time in stored order, and returns the batch totals. MaxEmails
// and StartOffset from config bound the run when set. A store failure
// aborts the batch; links already written stay valid because each
// per-email commit is independent.
func (e *Engine) ProcessWorkspace(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
	stats := &model.BatchStats{WorkspaceID: workspaceID, StartedAt: time.Now().UTC()}
	log := zap.L().With(zap.String("workspace", workspaceID))
	log.Info("engine: batch starting", zap.Int("page_size", e.cfg.Engine.BatchSize))

	offset := e.cfg.Engine.StartOffset
	remaining := e.cfg.Engine.MaxEmails // 0 means unbounded
	for {
		limit := e.cfg.Engine.BatchSize
		if remaining > 0 && remaining < limit {
			limit = remaining
		}
		emails, err := e.store.ListEmails(ctx, workspaceID, limit, offset)
		if err != nil {
			return nil, eris.Wrap(err, "engine: list emails")
		}
		if len(emails) == 0 {
			break
		}

		for i := range emails {
			outcome, err := e.ProcessEmail(ctx, &emails[i])
			if err != nil {
				return nil, eris.Wrapf(err, "engine: process email %s", emails[i].ID)
			}

			stats.Processed++
			stats.PersonLinks += outcome.PersonLinks
			stats.CompanyLinks += outcome.CompanyLinks
			stats.ActionLinks += outcome.ActionLinks
			stats.PersonsCreated += outcome.PersonsCreated
			stats.CompaniesCreated += outcome.CompaniesCreated
			stats.ActionsCreated += outcome.ActionsCreated
			if outcome.HasPerson {
				stats.EmailsWithPerson++
			}
			if outcome.HasCompany {
				stats.EmailsWithCompany++
			}
			if outcome.HasAction {
				stats.EmailsWithAction++
			}
		}
		offset += len(emails)

		if e.cfg.Engine.MaxEmails > 0 {
			remaining -= len(emails)
			if remaining <= 0 {
				break
			}
		}
	}

	stats.PersonCoveragePct = model.Percent(stats.EmailsWithPerson, stats.Processed)
	stats.CompanyCoveragePct = model.Percent(stats.EmailsWithCompany, stats.Processed)
	stats.ActionCoveragePct = model.Percent(stats.EmailsWithAction, stats.Processed)
	stats.FinishedAt = time.Now().UTC()

	log.Info("engine: batch complete",
		zap.Int("processed", stats.Processed),
		zap.Int("person_links", stats.PersonLinks),
		zap.Int("company_links", stats.CompanyLinks),
		zap.Int("action_links", stats.ActionLinks),
		zap.Int("actions_created", stats.ActionsCreated),
		zap.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)),
	)
	return stats, nil
}

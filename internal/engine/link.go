package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

// LinkOutcome counts the link rows a WriteLinks call actually inserted.
// Already-present pairs are silently skipped and not counted.
type LinkOutcome struct {
	PersonLinks  int
	CompanyLinks int
	ActionLinks  int
}

// WriteLinks records the email's associations with every matched person and
// company and with its action. Each write is independent and idempotent: a
// duplicate pair is success-without-effect, and an individual failure is
// logged while the remaining links still go in.
func WriteLinks(ctx context.Context, st store.Store, email *model.EmailMessage, persons []model.Person, companies []model.Company, action *model.Action) LinkOutcome {
	log := zap.L().With(zap.String("email", email.ID))
	var out LinkOutcome

	for i := range persons {
		created, err := st.LinkEmailPerson(ctx, &model.EmailPersonLink{
			EmailID:     email.ID,
			PersonID:    persons[i].ID,
			WorkspaceID: email.WorkspaceID,
		})
		if err != nil {
			log.Warn("engine: person link failed", zap.String("person", persons[i].ID), zap.Error(err))
			continue
		}
		if created {
			out.PersonLinks++
		}
	}

	for i := range companies {
		created, err := st.LinkEmailCompany(ctx, &model.EmailCompanyLink{
			EmailID:     email.ID,
			CompanyID:   companies[i].ID,
			WorkspaceID: email.WorkspaceID,
		})
		if err != nil {
			log.Warn("engine: company link failed", zap.String("company", companies[i].ID), zap.Error(err))
			continue
		}
		if created {
			out.CompanyLinks++
		}
	}

	if action != nil {
		created, err := st.LinkEmailAction(ctx, &model.EmailActionLink{
			EmailID:     email.ID,
			ActionID:    action.ID,
			WorkspaceID: email.WorkspaceID,
		})
		if err != nil {
			log.Warn("engine: action link failed", zap.String("action", action.ID), zap.Error(err))
		} else if created {
			out.ActionLinks++
		}
	}

	return out
}

package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxtoolworks/licensebot/internal/catalog"
	"github.com/fxtoolworks/licensebot/pkg/chat"
)

func (e *Engine) handleAddName(ctx context.Context, session *Session, msg chat.Message, text string) {
	if text == "" {
		e.send(ctx, msg.ChatID, "Please send the product name.")
		return
	}
	session.Transition(addAwaitingFile{Name: text})
	e.send(ctx, msg.ChatID, "Upload the product file.")
}

func (e *Engine) handleAddFile(ctx context.Context, session *Session, msg chat.Message, st addAwaitingFile) {
	if msg.Document == nil {
		e.send(ctx, msg.ChatID, "Please upload the product file as a document.")
		return
	}
	session.Transition(addAwaitingTrialFlag{Name: st.Name, FileRef: msg.Document.FileRef})
	e.send(ctx, msg.ChatID, "Is this a trial product? (yes/no)")
}

func (e *Engine) handleAddTrialFlag(ctx context.Context, session *Session, msg chat.Message, st addAwaitingTrialFlag, text string) {
	switch strings.ToLower(text) {
	case "yes", "y":
		session.Transition(addAwaitingTrialExpiry{Name: st.Name, FileRef: st.FileRef})
		e.send(ctx, msg.ChatID, "How many days should the trial last?")
	case "no", "n":
		session.Transition(addAwaitingTierEntry{Name: st.Name, FileRef: st.FileRef})
		e.send(ctx, msg.ChatID, fmt.Sprintf("Send pricing tiers one per message as %s, then 'done'.", tierEntryFormat))
	default:
		e.send(ctx, msg.ChatID, "Please answer yes or no.")
	}
}

func (e *Engine) handleAddTrialExpiry(ctx context.Context, session *Session, msg chat.Message, st addAwaitingTrialExpiry, text string) {
	days, err := strconv.Atoi(text)
	if err != nil || days < 0 {
		e.send(ctx, msg.ChatID, "Trial length must be a non-negative number of days.")
		return
	}

	e.createProduct(ctx, session, msg, catalog.CreateProductInput{
		Name:            st.Name,
		FileRef:         st.FileRef,
		IsTrial:         true,
		TrialExpiryDays: days,
	})
}

func (e *Engine) handleAddTierEntry(ctx context.Context, session *Session, msg chat.Message, st addAwaitingTierEntry, text string) {
	if strings.EqualFold(text, "done") {
		if len(st.Tiers) == 0 {
			e.send(ctx, msg.ChatID, fmt.Sprintf("A paid product needs at least one tier. Send one as %s.", tierEntryFormat))
			return
		}
		e.createProduct(ctx, session, msg, catalog.CreateProductInput{
			Name:    st.Name,
			FileRef: st.FileRef,
			Tiers:   st.Tiers,
		})
		return
	}

	tier, err := parseTierEntry(text)
	if err != nil {
		e.send(ctx, msg.ChatID, fmt.Sprintf("Could not read that tier: %v. Format: %s", err, tierEntryFormat))
		return
	}
	for _, existing := range st.Tiers {
		if existing.TierID == tier.TierID {
			e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q is already listed. Pick another id.", tier.TierID))
			return
		}
	}

	st.Tiers = append(st.Tiers, tier)
	session.Transition(st)
	e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q added. Send another, or 'done'.", tier.TierID))
}

func (e *Engine) createProduct(ctx context.Context, session *Session, msg chat.Message, input catalog.CreateProductInput) {
	product, err := e.catalog.CreateProduct(ctx, input)
	if err != nil {
		e.logger.Error(ctx, "creating product", err)
		e.send(ctx, msg.ChatID, "Could not create the product. Please try again.")
		return
	}

	session.Clear()
	e.recordAudit(ctx, msg.UserID, "product.create", fmt.Sprintf("id=%s name=%s", product.ID, product.Name))
	e.send(ctx, msg.ChatID, fmt.Sprintf("Product %s (%s) created.", product.ID, product.Name))
}

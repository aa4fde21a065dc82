package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

func editMenu(product *models.Product) string {
	return fmt.Sprintf(`Editing %s (%s). Choose:
1. name
2. file
3. trial expiry
4. pricing tiers
5. done (save changes)`, product.ID, product.Name)
}

func (e *Engine) cmdAdminEdit(ctx context.Context, session *Session, msg chat.Message, args []string) {
	if isEditState(session.State()) {
		e.send(ctx, msg.ChatID, "An edit is already in progress. Finish it or send /cancel first.")
		return
	}

	if len(args) == 0 {
		session.Transition(editAwaitingProductID{})
		e.send(ctx, msg.ChatID, "Which product id do you want to edit?")
		return
	}
	e.beginEdit(ctx, session, msg, args[0])
}

func (e *Engine) handleEditProductID(ctx context.Context, session *Session, msg chat.Message, text string) {
	e.beginEdit(ctx, session, msg, text)
}

func (e *Engine) beginEdit(ctx context.Context, session *Session, msg chat.Message, id string) {
	product, err := e.catalog.GetProduct(ctx, id)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			session.Transition(editAwaitingProductID{})
			e.send(ctx, msg.ChatID, fmt.Sprintf("No product with id %q. Which product id do you want to edit?", id))
			return
		}
		e.logger.Error(ctx, "loading product", err)
		e.send(ctx, msg.ChatID, "The catalog is unavailable right now. Please try again.")
		return
	}

	// work on a copy; nothing persists until the admin picks done
	session.Transition(editAwaitingChoice{Product: *product})
	e.send(ctx, msg.ChatID, editMenu(product))
}

func (e *Engine) handleEditChoice(ctx context.Context, session *Session, msg chat.Message, st editAwaitingChoice, text string) {
	switch text {
	case "1":
		session.Transition(editAwaitingName{Product: st.Product})
		e.send(ctx, msg.ChatID, "What is the new name?")
	case "2":
		session.Transition(editAwaitingFile{Product: st.Product})
		e.send(ctx, msg.ChatID, "Upload the new product file.")
	case "3":
		if !st.Product.IsTrial {
			e.send(ctx, msg.ChatID, "This is not a trial product.\n"+editMenu(&st.Product))
			return
		}
		session.Transition(editAwaitingTrialExpiry{Product: st.Product})
		e.send(ctx, msg.ChatID, "How many days should the trial last?")
	case "4":
		if st.Product.IsTrial {
			e.send(ctx, msg.ChatID, "Trial products have no pricing tiers.\n"+editMenu(&st.Product))
			return
		}
		session.Transition(editTierMenu{Product: st.Product})
		e.send(ctx, msg.ChatID, tierMenuText(&st.Product))
	case "5":
		if err := e.catalog.SaveProduct(ctx, &st.Product); err != nil {
			e.logger.Error(ctx, "saving product", err)
			e.send(ctx, msg.ChatID, fmt.Sprintf("Could not save: %v\n%s", err, editMenu(&st.Product)))
			return
		}
		session.Clear()
		e.recordAudit(ctx, msg.UserID, "product.edit", fmt.Sprintf("id=%s name=%s", st.Product.ID, st.Product.Name))
		e.send(ctx, msg.ChatID, fmt.Sprintf("Product %s saved.", st.Product.ID))
	default:
		e.send(ctx, msg.ChatID, "Pick 1-5.\n"+editMenu(&st.Product))
	}
}

func (e *Engine) handleEditName(ctx context.Context, session *Session, msg chat.Message, st editAwaitingName, text string) {
	if text == "" {
		e.send(ctx, msg.ChatID, "Please send the new name.")
		return
	}
	st.Product.Name = text
	session.Transition(editAwaitingChoice{Product: st.Product})
	e.send(ctx, msg.ChatID, editMenu(&st.Product))
}

func (e *Engine) handleEditFile(ctx context.Context, session *Session, msg chat.Message, st editAwaitingFile) {
	if msg.Document == nil {
		e.send(ctx, msg.ChatID, "Please upload the new file as a document.")
		return
	}
	st.Product.FileRef = msg.Document.FileRef
	session.Transition(editAwaitingChoice{Product: st.Product})
	e.send(ctx, msg.ChatID, editMenu(&st.Product))
}

func (e *Engine) handleEditTrialExpiry(ctx context.Context, session *Session, msg chat.Message, st editAwaitingTrialExpiry, text string) {
	days, err := strconv.Atoi(text)
	if err != nil || days < 0 {
		e.send(ctx, msg.ChatID, "Trial length must be a non-negative number of days.")
		return
	}
	st.Product.TrialExpiryDays = days
	session.Transition(editAwaitingChoice{Product: st.Product})
	e.send(ctx, msg.ChatID, editMenu(&st.Product))
}

func tierMenuText(product *models.Product) string {
	var b strings.Builder
	b.WriteString("Current tiers:\n")
	for _, tier := range product.Tiers {
		fmt.Fprintf(&b, "  %s: $%s / %s XLM (%d days)\n", tier.TierID, tier.PriceUSD.String(), tier.PriceXLM.String(), tier.ExpiryDays)
	}
	b.WriteString("Send a tier id to replace it, 'add' for a new tier, or 'delete <tier_id>'.")
	return b.String()
}

func (e *Engine) handleEditTierMenu(ctx context.Context, session *Session, msg chat.Message, st editTierMenu, text string) {
	if strings.EqualFold(text, "add") {
		session.Transition(editTierAdd{Product: st.Product})
		e.send(ctx, msg.ChatID, fmt.Sprintf("Send the new tier as %s.", tierEntryFormat))
		return
	}

	if rest, ok := strings.CutPrefix(text, "delete "); ok {
		tierID := strings.TrimSpace(rest)
		idx := tierIndex(&st.Product, tierID)
		if idx < 0 {
			e.send(ctx, msg.ChatID, fmt.Sprintf("No tier %q.\n%s", tierID, tierMenuText(&st.Product)))
			return
		}
		if len(st.Product.Tiers) == 1 {
			e.send(ctx, msg.ChatID, "A paid product needs at least one tier; add a replacement before deleting this one.\n"+tierMenuText(&st.Product))
			return
		}
		st.Product.Tiers = append(st.Product.Tiers[:idx], st.Product.Tiers[idx+1:]...)
		session.Transition(editAwaitingChoice{Product: st.Product})
		e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q removed.\n%s", tierID, editMenu(&st.Product)))
		return
	}

	if tierIndex(&st.Product, text) >= 0 {
		session.Transition(editTierReplace{Product: st.Product, TierID: text})
		e.send(ctx, msg.ChatID, fmt.Sprintf("Send the new values for %q as %s.", text, tierValuesFormat))
		return
	}

	e.send(ctx, msg.ChatID, tierMenuText(&st.Product))
}

func (e *Engine) handleEditTierReplace(ctx context.Context, session *Session, msg chat.Message, st editTierReplace, text string) {
	usd, xlm, days, err := parseTierValues(text)
	if err != nil {
		e.send(ctx, msg.ChatID, fmt.Sprintf("Could not read that: %v. Format: %s", err, tierValuesFormat))
		return
	}

	idx := tierIndex(&st.Product, st.TierID)
	if idx < 0 {
		session.Transition(editAwaitingChoice{Product: st.Product})
		e.send(ctx, msg.ChatID, "That tier no longer exists.\n"+editMenu(&st.Product))
		return
	}
	st.Product.Tiers[idx].PriceUSD = usd
	st.Product.Tiers[idx].PriceXLM = xlm
	st.Product.Tiers[idx].ExpiryDays = days

	session.Transition(editAwaitingChoice{Product: st.Product})
	e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q updated.\n%s", st.TierID, editMenu(&st.Product)))
}

func (e *Engine) handleEditTierAdd(ctx context.Context, session *Session, msg chat.Message, st editTierAdd, text string) {
	tier, err := parseTierEntry(text)
	if err != nil {
		e.send(ctx, msg.ChatID, fmt.Sprintf("Could not read that tier: %v. Format: %s", err, tierEntryFormat))
		return
	}
	if tierIndex(&st.Product, tier.TierID) >= 0 {
		e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q already exists. Pick another id.", tier.TierID))
		return
	}

	st.Product.Tiers = append(st.Product.Tiers, models.PricingTier{
		ProductID:  st.Product.ID,
		TierID:     tier.TierID,
		PriceUSD:   tier.PriceUSD,
		PriceXLM:   tier.PriceXLM,
		ExpiryDays: tier.ExpiryDays,
	})
	session.Transition(editAwaitingChoice{Product: st.Product})
	e.send(ctx, msg.ChatID, fmt.Sprintf("Tier %q added.\n%s", tier.TierID, editMenu(&st.Product)))
}

func tierIndex(product *models.Product, tierID string) int {
	for i := range product.Tiers {
		if product.Tiers[i].TierID == tierID {
			return i
		}
	}
	return -1
}

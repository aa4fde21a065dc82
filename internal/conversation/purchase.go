package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/internal/payment"
	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

const expiryDateFormat = "2006-01-02"

func (e *Engine) handleName(ctx context.Context, session *Session, msg chat.Message, text string) {
	if text == "" {
		e.send(ctx, msg.ChatID, "Please send the name the license should be issued to.")
		return
	}

	listing, err := e.catalogListing(ctx)
	if err != nil {
		e.logger.Error(ctx, "listing catalog", err)
		e.send(ctx, msg.ChatID, "The catalog is unavailable right now. Please try again in a moment.")
		return
	}

	session.Transition(awaitingProduct{Username: text})
	e.send(ctx, msg.ChatID, fmt.Sprintf("Thanks, %s. Pick a product by its id:\n%s", text, listing))
}

func (e *Engine) handleProductChoice(ctx context.Context, session *Session, msg chat.Message, st awaitingProduct, text string) {
	product, err := e.catalog.GetProduct(ctx, text)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			listing, listErr := e.catalogListing(ctx)
			if listErr != nil {
				e.logger.Error(ctx, "listing catalog", listErr)
				listing = ""
			}
			e.send(ctx, msg.ChatID, fmt.Sprintf("No product with id %q. Pick one of:\n%s", text, listing))
			return
		}
		e.logger.Error(ctx, "loading product", err)
		e.send(ctx, msg.ChatID, "The catalog is unavailable right now. Please try again in a moment.")
		return
	}

	if product.IsTrial {
		e.issueAndDeliver(ctx, msg.ChatID, licensing.IssueInput{
			Username: st.Username,
			Product:  *product,
		})
		session.Clear()
		return
	}

	session.Transition(awaitingPricingTier{Username: st.Username, Product: *product})
	e.send(ctx, msg.ChatID, fmt.Sprintf("Pick a pricing tier for %s:\n%s", product.Name, tierListing(product)))
}

func (e *Engine) handleTierChoice(ctx context.Context, session *Session, msg chat.Message, st awaitingPricingTier, text string) {
	var chosen *models.PricingTier
	for i := range st.Product.Tiers {
		if st.Product.Tiers[i].TierID == text {
			chosen = &st.Product.Tiers[i]
			break
		}
	}
	if chosen == nil {
		e.send(ctx, msg.ChatID, fmt.Sprintf("No tier %q. Pick one of:\n%s", text, tierListing(&st.Product)))
		return
	}

	session.Transition(awaitingPayment{Username: st.Username, Product: st.Product, Tier: *chosen})
	e.send(ctx, msg.ChatID, fmt.Sprintf(
		"Send %s XLM (or $%s USDC) to:\n%s\n\nThen reply with the Stellar address you paid from.\nFor testing, use the address %s.",
		chosen.PriceXLM.String(), chosen.PriceUSD.String(), e.settlement, e.testAddress))
}

func (e *Engine) handlePayment(ctx context.Context, session *Session, msg chat.Message, st awaitingPayment, text string) {
	address, err := payment.ParseAddress(text)
	if err != nil {
		e.send(ctx, msg.ChatID, "That does not look like a Stellar address (56 characters, starting with G). Please send the address you paid from.")
		return
	}

	verification, err := e.oracle.Check(ctx, address)
	if err != nil {
		e.logger.Error(ctx, "checking payment", err)
		e.send(ctx, msg.ChatID, "Payment verification is unavailable right now. Please send the address again in a moment.")
		return
	}
	if !verification.Verified {
		e.send(ctx, msg.ChatID, "No settled payment found from that address yet. Please check and send the address again.")
		return
	}

	e.issueAndDeliver(ctx, msg.ChatID, licensing.IssueInput{
		Username: st.Username,
		Product:  st.Product,
		Tier:     &st.Tier,
		TxRef:    verification.TxRef,
	})
	session.Clear()
}

// issueAndDeliver mints the license and then attempts artifact delivery. The
// records are committed before the first send; a render or delivery failure
// only costs the user a /resend.
func (e *Engine) issueAndDeliver(ctx context.Context, chatID int64, input licensing.IssueInput) {
	issuance, err := e.issuer.Issue(ctx, input)
	if issuance == nil {
		e.logger.Error(ctx, "issuing license", err)
		e.send(ctx, chatID, "Something went wrong issuing your license. Please try again.")
		return
	}

	key := issuance.License.LicenseKey
	e.send(ctx, chatID, fmt.Sprintf("Your license key is:\n%s\nValid until %s.",
		key, issuance.License.Expiry.UTC().Format(expiryDateFormat)))

	// a failed certificate render arrives with the issuance and lands the
	// user on the same /resend path as a failed send
	if err == nil {
		err = e.delivery.Deliver(ctx, chatID, &issuance.Transaction)
	}
	if err != nil {
		e.logger.Error(ctx, "delivering artifacts", err)
		e.send(ctx, chatID, fmt.Sprintf("Some of your files could not be delivered. Send /resend %s to receive them again.", key))
	}
}

func (e *Engine) catalogListing(ctx context.Context) (string, error) {
	products, err := e.catalog.ListProducts(ctx)
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return "(no products available yet)", nil
	}

	var b strings.Builder
	for _, product := range products {
		if product.IsTrial {
			fmt.Fprintf(&b, "%s. %s (free trial, %d days)\n", product.ID, product.Name, product.TrialExpiryDays)
			continue
		}
		fmt.Fprintf(&b, "%s. %s\n", product.ID, product.Name)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func tierListing(product *models.Product) string {
	var b strings.Builder
	for _, tier := range product.Tiers {
		fmt.Fprintf(&b, "%s. $%s (%d days)\n", tier.TierID, tier.PriceUSD.String(), tier.ExpiryDays)
	}
	return strings.TrimRight(b.String(), "\n")
}

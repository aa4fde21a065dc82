package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fxtoolworks/licensebot/pkg/chat"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

const adminHelpText = `Admin commands:
/admin_list_products
/admin_add_product
/admin_edit_product [id]
/admin_delete_product <id>
/admin_deactivate_license <key>
/admin_reactivate_license <key>
/admin_help`

func (e *Engine) cmdAdminHelp(ctx context.Context, msg chat.Message) {
	e.send(ctx, msg.ChatID, adminHelpText)
}

func (e *Engine) cmdAdminList(ctx context.Context, msg chat.Message) {
	products, err := e.catalog.ListProducts(ctx)
	if err != nil {
		e.logger.Error(ctx, "listing catalog", err)
		e.send(ctx, msg.ChatID, "The catalog is unavailable right now.")
		return
	}
	if len(products) == 0 {
		e.send(ctx, msg.ChatID, "No products yet. Use /admin_add_product to create one.")
		return
	}

	var b strings.Builder
	for _, product := range products {
		if product.IsTrial {
			fmt.Fprintf(&b, "%s. %s [trial, %d days] file=%s\n", product.ID, product.Name, product.TrialExpiryDays, product.FileRef)
			continue
		}
		fmt.Fprintf(&b, "%s. %s file=%s\n", product.ID, product.Name, product.FileRef)
		for _, tier := range product.Tiers {
			fmt.Fprintf(&b, "    %s: $%s / %s XLM (%d days)\n", tier.TierID, tier.PriceUSD.String(), tier.PriceXLM.String(), tier.ExpiryDays)
		}
	}
	e.send(ctx, msg.ChatID, strings.TrimRight(b.String(), "\n"))
}

func (e *Engine) cmdAdminDelete(ctx context.Context, msg chat.Message, args []string) {
	if len(args) != 1 {
		e.send(ctx, msg.ChatID, "Usage: /admin_delete_product <id>")
		return
	}

	if err := e.catalog.DeleteProduct(ctx, args[0]); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			e.send(ctx, msg.ChatID, fmt.Sprintf("No product with id %q.", args[0]))
			return
		}
		e.logger.Error(ctx, "deleting product", err)
		e.send(ctx, msg.ChatID, "Could not delete the product. Please try again.")
		return
	}

	e.recordAudit(ctx, msg.UserID, "product.delete", "id="+args[0])
	e.send(ctx, msg.ChatID, fmt.Sprintf("Product %s deleted. Already issued licenses are unaffected.", args[0]))
}

func (e *Engine) cmdAdminSetActive(ctx context.Context, msg chat.Message, args []string, active bool) {
	usage := "Usage: /admin_deactivate_license <key>"
	action, done := "license.deactivate", "deactivated"
	if active {
		usage = "Usage: /admin_reactivate_license <key>"
		action, done = "license.reactivate", "reactivated"
	}
	if len(args) != 1 {
		e.send(ctx, msg.ChatID, usage)
		return
	}

	var err error
	if active {
		err = e.validator.Reactivate(ctx, args[0])
	} else {
		err = e.validator.Deactivate(ctx, args[0])
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			e.send(ctx, msg.ChatID, "License key not found.")
			return
		}
		e.logger.Error(ctx, "updating license active flag", err)
		e.send(ctx, msg.ChatID, "Could not update the license. Please try again.")
		return
	}

	e.recordAudit(ctx, msg.UserID, action, "key="+args[0])
	e.send(ctx, msg.ChatID, fmt.Sprintf("License %s %s.", args[0], done))
}

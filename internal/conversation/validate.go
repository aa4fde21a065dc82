package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/enums"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
)

func (e *Engine) cmdValidate(ctx context.Context, session *Session, msg chat.Message, args []string) {
	switch len(args) {
	case 0:
		e.send(ctx, msg.ChatID, "Usage: /validate <license_key> [hwid]")
	case 1:
		session.Transition(awaitingHwid{LicenseKey: args[0], PromptedAt: e.now()})
		e.send(ctx, msg.ChatID, "Reply with your hardware id, or 'skip' to validate without one.")
	default:
		e.runValidation(ctx, msg.ChatID, args[0], args[1])
	}
}

func (e *Engine) handleHwidReply(ctx context.Context, session *Session, msg chat.Message, st awaitingHwid, text string) {
	session.Clear()

	if e.now().Sub(st.PromptedAt) > e.validateWait {
		e.send(ctx, msg.ChatID, "That took too long. Send /validate again to restart.")
		return
	}

	hwid := text
	if strings.EqualFold(text, "skip") {
		hwid = ""
	}
	e.runValidation(ctx, msg.ChatID, st.LicenseKey, hwid)
}

func (e *Engine) runValidation(ctx context.Context, chatID int64, key, hwid string) {
	verdict, err := e.validator.Validate(ctx, key, hwid)
	if err != nil {
		e.logger.Error(ctx, "validating license", err)
		e.send(ctx, chatID, "Validation is unavailable right now. Please try again in a moment.")
		return
	}

	switch verdict.Result {
	case enums.VerdictValid:
		e.send(ctx, chatID, fmt.Sprintf("License valid.\nIssued to: %s\nProduct: %s\nExpires: %s",
			verdict.License.Username, verdict.License.Product,
			verdict.License.Expiry.UTC().Format(expiryDateFormat)))
	case enums.VerdictNotFound:
		e.send(ctx, chatID, "License key not found.")
	case enums.VerdictHwidMismatch:
		e.send(ctx, chatID, "This license is bound to a different machine.")
	case enums.VerdictDeactivated:
		e.send(ctx, chatID, "This license has been deactivated.")
	case enums.VerdictExpired:
		reply := fmt.Sprintf("This license expired on %s.", verdict.License.Expiry.UTC().Format(expiryDateFormat))
		if verdict.Message != "" {
			reply += "\n" + verdict.Message
		}
		e.send(ctx, chatID, reply)
	}
}

func (e *Engine) cmdResend(ctx context.Context, msg chat.Message, args []string) {
	if len(args) != 1 {
		e.send(ctx, msg.ChatID, "Usage: /resend <license_key>")
		return
	}

	if err := e.delivery.Resend(ctx, msg.ChatID, args[0]); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			e.send(ctx, msg.ChatID, "No delivery record found for that license key.")
			return
		}
		e.logger.Error(ctx, "resending artifacts", err)
		e.send(ctx, msg.ChatID, fmt.Sprintf("Some files could not be delivered. Send /resend %s to try again.", args[0]))
	}
}

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fxtoolworks/licensebot/internal/audit"
	"github.com/fxtoolworks/licensebot/internal/catalog"
	"github.com/fxtoolworks/licensebot/internal/delivery"
	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/internal/payment"
	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

// Params collects the engine's collaborators.
type Params struct {
	Store     *Store
	Gateway   chat.Gateway
	Catalog   catalog.Service
	Issuer    licensing.Issuer
	Validator licensing.Validator
	Delivery  delivery.Service
	Oracle    payment.Oracle
	Audit     audit.Sink
	Logger    *logger.Logger

	Bot          config.BotConfig
	Stellar      config.StellarConfig
	Conversation config.ConversationConfig
}

// Engine routes inbound chat messages to the conversation state machine.
type Engine struct {
	store     *Store
	gateway   chat.Gateway
	catalog   catalog.Service
	issuer    licensing.Issuer
	validator licensing.Validator
	delivery  delivery.Service
	oracle    payment.Oracle
	audit     audit.Sink
	logger    *logger.Logger

	adminChatID  int64
	settlement   string
	testAddress  string
	validateWait time.Duration
	now          func() time.Time
}

// NewEngine wires the conversation engine.
func NewEngine(params Params) (*Engine, error) {
	switch {
	case params.Store == nil:
		return nil, fmt.Errorf("session store required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("chat gateway required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case params.Issuer == nil:
		return nil, fmt.Errorf("license issuer required")
	case params.Validator == nil:
		return nil, fmt.Errorf("license validator required")
	case params.Delivery == nil:
		return nil, fmt.Errorf("delivery service required")
	case params.Oracle == nil:
		return nil, fmt.Errorf("payment oracle required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit sink required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}

	return &Engine{
		store:        params.Store,
		gateway:      params.Gateway,
		catalog:      params.Catalog,
		issuer:       params.Issuer,
		validator:    params.Validator,
		delivery:     params.Delivery,
		oracle:       params.Oracle,
		audit:        params.Audit,
		logger:       params.Logger,
		adminChatID:  params.Bot.AdminChatID,
		settlement:   params.Stellar.SettlementAddress,
		testAddress:  params.Stellar.TestAddress,
		validateWait: params.Conversation.ValidateWait,
		now:          time.Now,
	}, nil
}

// Run consumes updates from the source until the context is cancelled.
// Messages are handled one at a time, preserving per-user arrival order.
func (e *Engine) Run(ctx context.Context, source chat.Source) error {
	updates, err := source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to chat updates: %w", err)
	}

	e.store.StartJanitor(ctx)
	e.logger.Info(ctx, "conversation engine started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			e.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes one inbound message under the user's session lock.
func (e *Engine) HandleMessage(ctx context.Context, msg chat.Message) {
	ctx = e.logger.WithChatID(ctx, msg.ChatID)

	e.store.Do(msg.UserID, func(session *Session) {
		e.dispatch(ctx, session, msg)
	})
}

func (e *Engine) dispatch(ctx context.Context, session *Session, msg chat.Message) {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		e.dispatchCommand(ctx, session, msg, text)
		return
	}

	switch st := session.State().(type) {
	case awaitingName:
		e.handleName(ctx, session, msg, text)
	case awaitingProduct:
		e.handleProductChoice(ctx, session, msg, st, text)
	case awaitingPricingTier:
		e.handleTierChoice(ctx, session, msg, st, text)
	case awaitingPayment:
		e.handlePayment(ctx, session, msg, st, text)
	case addAwaitingName:
		e.handleAddName(ctx, session, msg, text)
	case addAwaitingFile:
		e.handleAddFile(ctx, session, msg, st)
	case addAwaitingTrialFlag:
		e.handleAddTrialFlag(ctx, session, msg, st, text)
	case addAwaitingTrialExpiry:
		e.handleAddTrialExpiry(ctx, session, msg, st, text)
	case addAwaitingTierEntry:
		e.handleAddTierEntry(ctx, session, msg, st, text)
	case editAwaitingProductID:
		e.handleEditProductID(ctx, session, msg, text)
	case editAwaitingChoice:
		e.handleEditChoice(ctx, session, msg, st, text)
	case editAwaitingName:
		e.handleEditName(ctx, session, msg, st, text)
	case editAwaitingFile:
		e.handleEditFile(ctx, session, msg, st)
	case editAwaitingTrialExpiry:
		e.handleEditTrialExpiry(ctx, session, msg, st, text)
	case editTierMenu:
		e.handleEditTierMenu(ctx, session, msg, st, text)
	case editTierReplace:
		e.handleEditTierReplace(ctx, session, msg, st, text)
	case editTierAdd:
		e.handleEditTierAdd(ctx, session, msg, st, text)
	case awaitingHwid:
		e.handleHwidReply(ctx, session, msg, st, text)
	default:
		e.send(ctx, msg.ChatID, "Send /start to begin, or /validate <license_key> to check a license.")
	}
}

func (e *Engine) dispatchCommand(ctx context.Context, session *Session, msg chat.Message, text string) {
	fields := strings.Fields(text)
	command, args := fields[0], fields[1:]

	switch command {
	case "/start":
		session.Transition(awaitingName{})
		e.send(ctx, msg.ChatID, "Welcome! What name should the license be issued to?")
	case "/cancel":
		session.Clear()
		e.send(ctx, msg.ChatID, "Cancelled.")
	case "/validate":
		e.cmdValidate(ctx, session, msg, args)
	case "/resend":
		e.cmdResend(ctx, msg, args)
	case "/admin_help":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminHelp(ctx, msg)
		}
	case "/admin_list_products":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminList(ctx, msg)
		}
	case "/admin_add_product":
		if e.requireAdmin(ctx, msg) {
			session.Transition(addAwaitingName{})
			e.send(ctx, msg.ChatID, "What is the product name?")
		}
	case "/admin_edit_product":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminEdit(ctx, session, msg, args)
		}
	case "/admin_delete_product":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminDelete(ctx, msg, args)
		}
	case "/admin_deactivate_license":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminSetActive(ctx, msg, args, false)
		}
	case "/admin_reactivate_license":
		if e.requireAdmin(ctx, msg) {
			e.cmdAdminSetActive(ctx, msg, args, true)
		}
	default:
		e.send(ctx, msg.ChatID, "Unknown command. Send /start to begin.")
	}
}

func (e *Engine) requireAdmin(ctx context.Context, msg chat.Message) bool {
	if msg.UserID == e.adminChatID {
		return true
	}
	e.logger.Warn(e.logger.WithField(ctx, "user_id", msg.UserID), "admin command from non-admin")
	e.send(ctx, msg.ChatID, "You are not authorized to use admin commands.")
	return false
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) {
	if err := e.gateway.SendText(ctx, chatID, text); err != nil {
		e.logger.Error(ctx, "sending chat reply", err)
	}
}

func (e *Engine) recordAudit(ctx context.Context, actorID int64, action, detail string) {
	if err := e.audit.Record(ctx, actorID, action, detail); err != nil {
		e.logger.Error(ctx, "writing audit event", err)
	}
}

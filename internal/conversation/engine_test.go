package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxtoolworks/licensebot/internal/catalog"
	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/internal/payment"
	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
	"github.com/fxtoolworks/licensebot/pkg/enums"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

const (
	adminID     = int64(1000)
	userID      = int64(7)
	testAddress = "GABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFGHIJKLMNOPQRSTUVW"
)

type fakeCatalog struct {
	products map[string]models.Product
	created  []catalog.CreateProductInput
	saved    []models.Product
	deleted  []string
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		copied := p
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, input catalog.CreateProductInput) (*models.Product, error) {
	f.created = append(f.created, input)
	return &models.Product{ID: "9", Name: input.Name, FileRef: input.FileRef, IsTrial: input.IsTrial}, nil
}

func (f *fakeCatalog) SaveProduct(ctx context.Context, product *models.Product) error {
	if err := catalog.ValidateShape(product); err != nil {
		return err
	}
	f.saved = append(f.saved, *product)
	return nil
}

func (f *fakeCatalog) DeleteProduct(ctx context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeIssuer struct {
	inputs []licensing.IssueInput
	err    error
}

func (f *fakeIssuer) Issue(ctx context.Context, input licensing.IssueInput) (*licensing.Issuance, error) {
	f.inputs = append(f.inputs, input)
	txHash := input.TxRef
	if input.Product.IsTrial {
		txHash = models.TrialTxHash
	}
	// a non-nil err stands in for a certificate render failure, which
	// still hands back the persisted issuance
	return &licensing.Issuance{
		License: models.License{
			LicenseKey: "issued-key",
			Username:   input.Username,
			Product:    input.Product.Name,
			TxHash:     txHash,
			Active:     true,
			IsTrial:    input.Product.IsTrial,
		},
		Transaction: models.Transaction{LicenseKey: "issued-key"},
	}, f.err
}

type fakeValidator struct {
	verdict     licensing.Verdict
	validations [][2]string
	deactivated []string
	reactivated []string
}

func (f *fakeValidator) Validate(ctx context.Context, key, hwid string) (licensing.Verdict, error) {
	f.validations = append(f.validations, [2]string{key, hwid})
	return f.verdict, nil
}

func (f *fakeValidator) Deactivate(ctx context.Context, key string) error {
	f.deactivated = append(f.deactivated, key)
	return nil
}

func (f *fakeValidator) Reactivate(ctx context.Context, key string) error {
	f.reactivated = append(f.reactivated, key)
	return nil
}

type fakeDelivery struct {
	delivered []string
	resent    []string
}

func (f *fakeDelivery) Deliver(ctx context.Context, chatID int64, txn *models.Transaction) error {
	f.delivered = append(f.delivered, txn.LicenseKey)
	return nil
}

func (f *fakeDelivery) Resend(ctx context.Context, chatID int64, key string) error {
	f.resent = append(f.resent, key)
	return nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) Record(ctx context.Context, actorID int64, action, detail string) error {
	f.actions = append(f.actions, action)
	return nil
}

type captureGateway struct {
	texts []string
}

func (g *captureGateway) SendText(ctx context.Context, chatID int64, text string) error {
	g.texts = append(g.texts, text)
	return nil
}

func (g *captureGateway) SendDocument(ctx context.Context, chatID int64, doc chat.Document, caption string) error {
	return nil
}

func (g *captureGateway) last() string {
	if len(g.texts) == 0 {
		return ""
	}
	return g.texts[len(g.texts)-1]
}

type testEnv struct {
	engine    *Engine
	store     *Store
	gateway   *captureGateway
	catalog   *fakeCatalog
	issuer    *fakeIssuer
	validator *fakeValidator
	delivery  *fakeDelivery
	audit     *fakeAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test"})
	env := &testEnv{
		store:   NewStore(10*time.Minute, time.Minute, logg),
		gateway: &captureGateway{},
		catalog: &fakeCatalog{products: map[string]models.Product{
			"1": {ID: "1", Name: "Trend EA", FileRef: "files/trend.ex4", IsTrial: true, TrialExpiryDays: 7},
			"2": {ID: "2", Name: "Scalper EA", FileRef: "files/scalper.ex5", Tiers: []models.PricingTier{{
				ProductID: "2", TierID: "1",
				PriceUSD: decimal.NewFromInt(10), PriceXLM: decimal.NewFromInt(50), ExpiryDays: 30,
			}}},
		}},
		issuer:    &fakeIssuer{},
		validator: &fakeValidator{verdict: licensing.Verdict{Result: enums.VerdictValid, License: &models.License{Username: "alice", Product: "Trend EA"}}},
		delivery:  &fakeDelivery{},
		audit:     &fakeAudit{},
	}

	oracle, err := payment.NewSimulatedOracle(config.StellarConfig{TestAddress: testAddress})
	if err != nil {
		t.Fatalf("NewSimulatedOracle: %v", err)
	}

	env.engine, err = NewEngine(Params{
		Store:        env.store,
		Gateway:      env.gateway,
		Catalog:      env.catalog,
		Issuer:       env.issuer,
		Validator:    env.validator,
		Delivery:     env.delivery,
		Oracle:       oracle,
		Audit:        env.audit,
		Logger:       logg,
		Bot:          config.BotConfig{AdminChatID: adminID},
		Stellar:      config.StellarConfig{SettlementAddress: "G" + strings.Repeat("S", 55), TestAddress: testAddress},
		Conversation: config.ConversationConfig{ValidateWait: 120 * time.Second},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return env
}

func (env *testEnv) say(from int64, text string) {
	env.engine.HandleMessage(context.Background(), chat.Message{ChatID: from, UserID: from, Username: "tester", Text: text})
}

func (env *testEnv) upload(from int64, fileRef string) {
	env.engine.HandleMessage(context.Background(), chat.Message{
		ChatID: from, UserID: from, Username: "tester",
		Document: &chat.Document{FileRef: fileRef, FileName: "upload.bin"},
	})
}

func (env *testEnv) userState(from int64) State {
	var st State
	env.store.Do(from, func(session *Session) { st = session.State() })
	return st
}

func TestTrialPurchaseShortCircuits(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/start")
	env.say(userID, "alice")
	env.say(userID, "1")

	if len(env.issuer.inputs) != 1 {
		t.Fatalf("expected 1 issuance, got %d", len(env.issuer.inputs))
	}
	input := env.issuer.inputs[0]
	if input.Username != "alice" || !input.Product.IsTrial || input.Tier != nil {
		t.Fatalf("unexpected issuance input %+v", input)
	}
	if len(env.delivery.delivered) != 1 {
		t.Fatalf("expected delivery, got %d", len(env.delivery.delivered))
	}
	if env.userState(userID) != nil {
		t.Fatalf("expected conversation ended, state %T", env.userState(userID))
	}
}

func TestRenderFailureStillSendsKeyAndResendHint(t *testing.T) {
	env := newTestEnv(t)
	env.issuer.err = pkgerrors.New(pkgerrors.CodeDependency, "render certificate")

	env.say(userID, "/start")
	env.say(userID, "alice")
	env.say(userID, "1")

	var sawKey, sawResend bool
	for _, text := range env.gateway.texts {
		if strings.Contains(text, "issued-key") && strings.Contains(text, "Valid until") {
			sawKey = true
		}
		if strings.Contains(text, "/resend issued-key") {
			sawResend = true
		}
	}
	if !sawKey {
		t.Fatalf("expected license key sent despite render failure, got %v", env.gateway.texts)
	}
	if !sawResend {
		t.Fatalf("expected /resend hint, got %v", env.gateway.texts)
	}
	if len(env.delivery.delivered) != 0 {
		t.Fatal("delivery must not run when the certificate failed")
	}
}

func TestPaidPurchaseWithTestAddress(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/start")
	env.say(userID, "bob")
	env.say(userID, "2")
	if _, ok := env.userState(userID).(awaitingPricingTier); !ok {
		t.Fatalf("expected tier state, got %T", env.userState(userID))
	}
	env.say(userID, "1")
	if _, ok := env.userState(userID).(awaitingPayment); !ok {
		t.Fatalf("expected payment state, got %T", env.userState(userID))
	}

	env.say(userID, testAddress)

	if len(env.issuer.inputs) != 1 {
		t.Fatalf("expected 1 issuance, got %d", len(env.issuer.inputs))
	}
	input := env.issuer.inputs[0]
	if input.TxRef != payment.SimulatedTxRef {
		t.Fatalf("expected simulated tx ref, got %q", input.TxRef)
	}
	if input.Tier == nil || input.Tier.TierID != "1" {
		t.Fatalf("unexpected tier %+v", input.Tier)
	}
	if env.userState(userID) != nil {
		t.Fatal("expected conversation ended")
	}
}

func TestMalformedAddressStaysInPaymentState(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/start")
	env.say(userID, "bob")
	env.say(userID, "2")
	env.say(userID, "1")

	for _, bad := range []string{"too-short", "A" + testAddress[1:], testAddress + "XX"} {
		env.say(userID, bad)
		if _, ok := env.userState(userID).(awaitingPayment); !ok {
			t.Fatalf("input %q: expected sticky payment state, got %T", bad, env.userState(userID))
		}
	}
	if len(env.issuer.inputs) != 0 {
		t.Fatalf("no license should be issued, got %d", len(env.issuer.inputs))
	}

	// an unverified but well-formed address also stays put
	env.say(userID, "G"+strings.Repeat("Z", 55))
	if _, ok := env.userState(userID).(awaitingPayment); !ok {
		t.Fatalf("expected sticky payment state after rejection, got %T", env.userState(userID))
	}
	if len(env.issuer.inputs) != 0 {
		t.Fatal("rejected payment must not issue")
	}
}

func TestUnknownProductReprompts(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/start")
	env.say(userID, "alice")
	env.say(userID, "42")

	if _, ok := env.userState(userID).(awaitingProduct); !ok {
		t.Fatalf("expected product state, got %T", env.userState(userID))
	}
	if !strings.Contains(env.gateway.last(), "No product") {
		t.Fatalf("expected corrective reply, got %q", env.gateway.last())
	}
}

func TestCancelClearsFromAnyState(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/start")
	env.say(userID, "alice")
	env.say(userID, "2")
	env.say(userID, "/cancel")

	if env.userState(userID) != nil {
		t.Fatalf("expected cleared session, got %T", env.userState(userID))
	}
	if len(env.issuer.inputs) != 0 {
		t.Fatal("cancel must have no side effects")
	}
}

func TestValidateInteractiveWaitAndSkip(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/validate key-1")
	if _, ok := env.userState(userID).(awaitingHwid); !ok {
		t.Fatalf("expected hwid prompt state, got %T", env.userState(userID))
	}

	env.say(userID, "skip")
	if len(env.validator.validations) != 1 {
		t.Fatalf("expected 1 validation, got %d", len(env.validator.validations))
	}
	if got := env.validator.validations[0]; got[0] != "key-1" || got[1] != "" {
		t.Fatalf("skip must validate without hwid, got %v", got)
	}
	if env.userState(userID) != nil {
		t.Fatal("expected conversation ended")
	}
}

func TestValidateHwidReplyTimesOut(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/validate key-1")
	env.engine.now = func() time.Time { return time.Now().Add(121 * time.Second) }
	env.say(userID, "HW-1")

	if len(env.validator.validations) != 0 {
		t.Fatal("late reply must not validate")
	}
	if !strings.Contains(env.gateway.last(), "too long") {
		t.Fatalf("expected timeout message, got %q", env.gateway.last())
	}
	if env.userState(userID) != nil {
		t.Fatal("expected cleared session")
	}
}

func TestValidateInlineHwid(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/validate key-1 HW-9")
	if len(env.validator.validations) != 1 {
		t.Fatalf("expected 1 validation, got %d", len(env.validator.validations))
	}
	if got := env.validator.validations[0]; got[0] != "key-1" || got[1] != "HW-9" {
		t.Fatalf("unexpected validation args %v", got)
	}
}

func TestResendCommand(t *testing.T) {
	env := newTestEnv(t)

	env.say(userID, "/resend key-1")
	env.say(userID, "/resend key-1")
	if len(env.delivery.resent) != 2 {
		t.Fatalf("expected 2 resends, got %d", len(env.delivery.resent))
	}

	env.say(userID, "/resend")
	if !strings.Contains(env.gateway.last(), "Usage") {
		t.Fatalf("expected usage message, got %q", env.gateway.last())
	}
}

func TestAdminCommandsRejectNonAdmin(t *testing.T) {
	env := newTestEnv(t)

	for _, cmd := range []string{
		"/admin_help", "/admin_list_products", "/admin_add_product",
		"/admin_edit_product 1", "/admin_delete_product 1",
		"/admin_deactivate_license k", "/admin_reactivate_license k",
	} {
		env.say(userID, cmd)
		if !strings.Contains(env.gateway.last(), "not authorized") {
			t.Fatalf("command %s: expected rejection, got %q", cmd, env.gateway.last())
		}
		if env.userState(userID) != nil {
			t.Fatalf("command %s must not change state", cmd)
		}
	}
	if len(env.audit.actions) != 0 {
		t.Fatal("rejected commands must not audit")
	}
}

func TestAdminAddPaidProductFlow(t *testing.T) {
	env := newTestEnv(t)

	env.say(adminID, "/admin_add_product")
	env.say(adminID, "Grid EA")
	env.upload(adminID, "files/grid.ex5")
	env.say(adminID, "no")

	// finishing with no tiers re-prompts
	env.say(adminID, "done")
	if len(env.catalog.created) != 0 {
		t.Fatal("paid product with no tiers must not be created")
	}
	if _, ok := env.userState(adminID).(addAwaitingTierEntry); !ok {
		t.Fatalf("expected tier entry state, got %T", env.userState(adminID))
	}

	env.say(adminID, "not,a,tier")
	if len(env.catalog.created) != 0 {
		t.Fatal("malformed tier must not create")
	}

	env.say(adminID, "basic,10,50,30")
	env.say(adminID, "done")

	if len(env.catalog.created) != 1 {
		t.Fatalf("expected product created, got %d", len(env.catalog.created))
	}
	created := env.catalog.created[0]
	if created.Name != "Grid EA" || created.FileRef != "files/grid.ex5" || len(created.Tiers) != 1 {
		t.Fatalf("unexpected input %+v", created)
	}
	if created.Tiers[0].TierID != "basic" || created.Tiers[0].ExpiryDays != 30 {
		t.Fatalf("unexpected tier %+v", created.Tiers[0])
	}
	if len(env.audit.actions) != 1 || env.audit.actions[0] != "product.create" {
		t.Fatalf("expected audit entry, got %v", env.audit.actions)
	}
}

func TestAdminAddTrialProductFlow(t *testing.T) {
	env := newTestEnv(t)

	env.say(adminID, "/admin_add_product")
	env.say(adminID, "Demo EA")
	env.upload(adminID, "files/demo.ex4")
	env.say(adminID, "yes")
	env.say(adminID, "-3")
	if len(env.catalog.created) != 0 {
		t.Fatal("negative trial days must re-prompt")
	}
	env.say(adminID, "14")

	if len(env.catalog.created) != 1 {
		t.Fatalf("expected product created, got %d", len(env.catalog.created))
	}
	created := env.catalog.created[0]
	if !created.IsTrial || created.TrialExpiryDays != 14 {
		t.Fatalf("unexpected input %+v", created)
	}
}

func TestAdminEditFlowAccumulatesAndSaves(t *testing.T) {
	env := newTestEnv(t)

	env.say(adminID, "/admin_edit_product 2")
	if _, ok := env.userState(adminID).(editAwaitingChoice); !ok {
		t.Fatalf("expected edit menu, got %T", env.userState(adminID))
	}

	// a second edit is rejected while one is active
	env.say(adminID, "/admin_edit_product 1")
	if !strings.Contains(env.gateway.last(), "already in progress") {
		t.Fatalf("expected rejection, got %q", env.gateway.last())
	}

	env.say(adminID, "1")
	env.say(adminID, "Scalper EA Pro")
	if len(env.catalog.saved) != 0 {
		t.Fatal("nothing persists before done")
	}

	env.say(adminID, "4")
	env.say(adminID, "1")
	env.say(adminID, "12,60,45")

	env.say(adminID, "5")
	if len(env.catalog.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(env.catalog.saved))
	}
	saved := env.catalog.saved[0]
	if saved.Name != "Scalper EA Pro" {
		t.Fatalf("expected renamed product, got %q", saved.Name)
	}
	if saved.Tiers[0].ExpiryDays != 45 || saved.Tiers[0].PriceUSD.String() != "12" {
		t.Fatalf("unexpected tier %+v", saved.Tiers[0])
	}
	if env.userState(adminID) != nil {
		t.Fatal("expected edit finished")
	}
	if len(env.audit.actions) != 1 || env.audit.actions[0] != "product.edit" {
		t.Fatalf("expected audit entry, got %v", env.audit.actions)
	}

	// source product untouched in the fake store
	if env.catalog.products["2"].Name != "Scalper EA" {
		t.Fatal("edit must work on a copy")
	}
}

func TestAdminEditTierGuards(t *testing.T) {
	env := newTestEnv(t)

	env.say(adminID, "/admin_edit_product 2")
	env.say(adminID, "4")

	// cannot delete the only tier
	env.say(adminID, "delete 1")
	if !strings.Contains(env.gateway.last(), "at least one tier") {
		t.Fatalf("expected guard message, got %q", env.gateway.last())
	}

	env.say(adminID, "add")
	env.say(adminID, "pro,25,120,90")
	env.say(adminID, "4")
	env.say(adminID, "delete 1")
	env.say(adminID, "5")

	if len(env.catalog.saved) != 1 {
		t.Fatalf("expected save, got %d", len(env.catalog.saved))
	}
	saved := env.catalog.saved[0]
	if len(saved.Tiers) != 1 || saved.Tiers[0].TierID != "pro" {
		t.Fatalf("unexpected tiers %+v", saved.Tiers)
	}
}

func TestAdminDeleteAndLicenseToggles(t *testing.T) {
	env := newTestEnv(t)

	env.say(adminID, "/admin_delete_product 1")
	if len(env.catalog.deleted) != 1 || env.catalog.deleted[0] != "1" {
		t.Fatalf("expected delete, got %v", env.catalog.deleted)
	}

	env.say(adminID, "/admin_delete_product 42")
	if !strings.Contains(env.gateway.last(), "No product") {
		t.Fatalf("expected not-found reply, got %q", env.gateway.last())
	}

	env.say(adminID, "/admin_deactivate_license key-1")
	env.say(adminID, "/admin_reactivate_license key-1")
	if len(env.validator.deactivated) != 1 || len(env.validator.reactivated) != 1 {
		t.Fatalf("expected toggles, got %v / %v", env.validator.deactivated, env.validator.reactivated)
	}

	want := []string{"product.delete", "license.deactivate", "license.reactivate"}
	if len(env.audit.actions) != len(want) {
		t.Fatalf("expected %d audit entries, got %v", len(want), env.audit.actions)
	}
	for i, action := range want {
		if env.audit.actions[i] != action {
			t.Fatalf("audit %d: expected %s, got %s", i, action, env.audit.actions[i])
		}
	}
}

func TestExpiredTrialVerdictMessageReachesUser(t *testing.T) {
	env := newTestEnv(t)
	env.validator.verdict = licensing.Verdict{
		Result:  enums.VerdictExpired,
		License: &models.License{IsTrial: true, Expiry: time.Now().AddDate(0, 0, -1)},
		Message: "Your trial has expired. Purchase a full license at https://t.me/fxtoolworks_bot",
	}

	env.say(userID, "/validate key-1 HW-1")
	if !strings.Contains(env.gateway.last(), "t.me/fxtoolworks_bot") {
		t.Fatalf("expected upsell in reply, got %q", env.gateway.last())
	}
}

package conversation

import (
	"time"

	"github.com/fxtoolworks/licensebot/internal/catalog"
	"github.com/fxtoolworks/licensebot/pkg/db/models"
)

// State is one step of an in-flight conversation. Each state carries the
// fields collected so far, so a handler never reaches for data that an
// earlier step might not have set.
type State interface {
	isState()
}

// purchase flow

type awaitingName struct{}

type awaitingProduct struct {
	Username string
}

type awaitingPricingTier struct {
	Username string
	Product  models.Product
}

type awaitingPayment struct {
	Username string
	Product  models.Product
	Tier     models.PricingTier
}

// admin add-product flow

type addAwaitingName struct{}

type addAwaitingFile struct {
	Name string
}

type addAwaitingTrialFlag struct {
	Name    string
	FileRef string
}

type addAwaitingTrialExpiry struct {
	Name    string
	FileRef string
}

type addAwaitingTierEntry struct {
	Name    string
	FileRef string
	Tiers   []catalog.TierInput
}

// admin edit-product flow. Edits accumulate on the working copy and hit the
// store only when the admin picks "done".

type editAwaitingProductID struct{}

type editAwaitingChoice struct {
	Product models.Product
}

type editAwaitingName struct {
	Product models.Product
}

type editAwaitingFile struct {
	Product models.Product
}

type editAwaitingTrialExpiry struct {
	Product models.Product
}

type editTierMenu struct {
	Product models.Product
}

type editTierReplace struct {
	Product models.Product
	TierID  string
}

type editTierAdd struct {
	Product models.Product
}

// interactive validation

type awaitingHwid struct {
	LicenseKey string
	PromptedAt time.Time
}

func (awaitingName) isState()            {}
func (awaitingProduct) isState()         {}
func (awaitingPricingTier) isState()     {}
func (awaitingPayment) isState()         {}
func (addAwaitingName) isState()         {}
func (addAwaitingFile) isState()         {}
func (addAwaitingTrialFlag) isState()    {}
func (addAwaitingTrialExpiry) isState()  {}
func (addAwaitingTierEntry) isState()    {}
func (editAwaitingProductID) isState()   {}
func (editAwaitingChoice) isState()      {}
func (editAwaitingName) isState()        {}
func (editAwaitingFile) isState()        {}
func (editAwaitingTrialExpiry) isState() {}
func (editTierMenu) isState()            {}
func (editTierReplace) isState()         {}
func (editTierAdd) isState()             {}
func (awaitingHwid) isState()            {}

func isEditState(s State) bool {
	switch s.(type) {
	case editAwaitingProductID, editAwaitingChoice, editAwaitingName,
		editAwaitingFile, editAwaitingTrialExpiry, editTierMenu,
		editTierReplace, editTierAdd:
		return true
	}
	return false
}

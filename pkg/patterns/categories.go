package patterns

// =============================================================================
// KEYWORD DEFINITIONS BY CATEGORY
// All keyword tables are registered here and built once at first access.
// This provides a single source of truth for the heuristic rule engine
// and the specialized detectors.
// =============================================================================

// Per-category score weights for the red-flag rule engine. Each distinct
// keyword found in the input contributes its category weight once.
const (
	WeightUrgency        = 15
	WeightAuthority      = 20
	WeightFinancial      = 25
	WeightCryptoSpecific = 30
)

// Weight returns the red-flag score weight for a category, or 0 for
// categories that do not participate in red-flag scoring.
func Weight(cat Category) int {
	switch cat {
	case CategoryUrgency:
		return WeightUrgency
	case CategoryAuthority:
		return WeightAuthority
	case CategoryFinancial:
		return WeightFinancial
	case CategoryCryptoSpecific:
		return WeightCryptoSpecific
	default:
		return 0
	}
}

// --- URGENCY KEYWORDS ---
// Pressure tactics that compress the victim's decision window.
func (r *Registry) registerUrgencyKeywords() {
	for _, phrase := range []string{
		"urgent",
		"immediately",
		"asap",
		"right now",
		"limited time",
		"expires soon",
		"act now",
		"don't delay",
	} {
		r.register(phrase, CategoryUrgency, WeightUrgency)
	}
}

// --- AUTHORITY KEYWORDS ---
// Impersonation of support desks, compliance teams, and account security.
func (r *Registry) registerAuthorityKeywords() {
	for _, phrase := range []string{
		"verify your account",
		"confirm your identity",
		"security check",
		"account suspended",
		"account locked",
		"compliance required",
	} {
		r.register(phrase, CategoryAuthority, WeightAuthority)
	}
}

// --- FINANCIAL KEYWORDS ---
// Direct requests for money movement or payment-gated "unlocks".
func (r *Registry) registerFinancialKeywords() {
	for _, phrase := range []string{
		"send funds",
		"transfer money",
		"payment required",
		"transaction fee",
		"unlock wallet",
		"verify payment",
		"refund processing",
	} {
		r.register(phrase, CategoryFinancial, WeightFinancial)
	}
}

// --- CRYPTO-SPECIFIC KEYWORDS ---
// Crypto-native attack vocabulary. Weighted highest: no legitimate party
// ever asks for a seed phrase or private key.
func (r *Registry) registerCryptoKeywords() {
	for _, phrase := range []string{
		"seed phrase",
		"private key",
		"mnemonic",
		"wallet connect",
		"gas fee",
		"smart contract",
		"defi protocol",
		"airdrop",
	} {
		r.register(phrase, CategoryCryptoSpecific, WeightCryptoSpecific)
	}
}

// --- SIM-SWAP KEYWORDS ---
// Carrier/2FA takeover phrases used by the SIM-swap detector. These carry
// no red-flag weight; the detector counts matches directly.
func (r *Registry) registerSIMSwapKeywords() {
	for _, phrase := range []string{
		"port your number",
		"transfer your sim",
		"carrier verification",
		"phone number change",
		"sim card replacement",
		"two-factor authentication",
		"sms verification code",
		"text message code",
	} {
		r.register(phrase, CategorySIMSwap, 0)
	}
}

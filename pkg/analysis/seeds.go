package analysis

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	defaultPatternsOnce sync.Once
	defaultPatterns     []AttackPattern
)

// DefaultPatterns returns the built-in threat corpus: real-world attack
// patterns covering SIM swapping, wallet stalking, address spoofing,
// crypto phishing, and on-chain behavior signatures.
func DefaultPatterns() []AttackPattern {
	defaultPatternsOnce.Do(buildDefaultPatterns)

	out := make([]AttackPattern, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// LoadSeedFile reads additional patterns from a YAML file, for operators
// extending the corpus without a rebuild.
func LoadSeedFile(path string) ([]AttackPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var doc struct {
		Patterns []AttackPattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, p := range doc.Patterns {
		if p.ID == "" || p.Text == "" || p.Category == "" {
			return nil, fmt.Errorf("seed pattern %d missing id, text, or category", i)
		}
	}
	return doc.Patterns, nil
}

func buildDefaultPatterns() {
	defaultPatterns = []AttackPattern{
		// SIM swapping
		{ID: "1001", Category: CategorySIMSwapping, Severity: "critical", Source: "phone_call", Tactic: "identity_verification_request",
			Text: "We need to verify your identity. Please provide your phone number and the last 4 digits of your SSN to port your number to a new SIM card."},
		{ID: "1002", Category: CategorySIMSwapping, Severity: "critical", Source: "phone_call", Tactic: "fake_security_alert",
			Text: "Your carrier account shows suspicious activity. We need to transfer your phone number to a new SIM card for security. Can you confirm your account PIN?"},
		{ID: "1003", Category: CategorySIMSwapping, Severity: "high", Source: "phishing_email", Tactic: "crypto_wallet_verification",
			Text: "Click here to verify your phone number and receive your SMS verification code. This is required to secure your crypto wallet."},
		{ID: "1004", Category: CategorySIMSwapping, Severity: "high", Source: "phishing_email", Tactic: "2fa_manipulation",
			Text: "Your two-factor authentication has been disabled. To re-enable, please verify your phone number by clicking this link and entering the code we'll send via SMS."},
		{ID: "1005", Category: CategorySIMSwapping, Severity: "critical", Source: "smishing", Tactic: "urgency_manipulation",
			Text: "URGENT: Your phone number will be deactivated in 24 hours. Call us immediately at this number to prevent service interruption and verify your account."},

		// Wallet stalking
		{ID: "2001", Category: CategoryWalletStalking, Severity: "medium", Source: "social_media", Tactic: "balance_observation",
			Text: "I noticed you have a large balance in your wallet. I can help you invest it safely. Send me your wallet address for a free consultation."},
		{ID: "2002", Category: CategoryWalletStalking, Severity: "high", Source: "direct_message", Tactic: "transaction_monitoring",
			Text: "I've been tracking your transactions. You seem to be doing well. Want to join my exclusive trading group? Just send 0.1 ETH to verify."},
		{ID: "2003", Category: CategoryWalletStalking, Severity: "high", Source: "phishing_email", Tactic: "address_exposure",
			Text: "Your wallet address 0x1234...5678 has been flagged for suspicious activity. Click here to verify your identity and avoid account suspension."},
		{ID: "2004", Category: CategoryWalletStalking, Severity: "medium", Source: "telegram", Tactic: "transaction_timing_exploit",
			Text: "I see you just received a large transaction. Congratulations! I have an investment opportunity that could double your money. Interested?"},
		{ID: "2005", Category: CategoryWalletStalking, Severity: "critical", Source: "direct_message", Tactic: "fake_security_service",
			Text: "Your wallet is being monitored by scammers. Send 0.05 ETH to this address to enable advanced security protection for your funds."},

		// Address spoofing
		{ID: "3001", Category: CategorySpoofing, Severity: "critical", Source: "phishing_email", Tactic: "fake_compromise_alert",
			Text: "Your wallet address has been compromised. Send all your funds immediately to this secure address: 0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb (Note: This is a spoofed address, last character changed)"},
		{ID: "3002", Category: CategorySpoofing, Severity: "critical", Source: "phishing_email", Tactic: "fake_address_update",
			Text: "We need to update your wallet address for security. Please send your funds to the new address: 0x8ba1f109551bD432803012645Hac136c22C9e7c (Similar to your address but different)"},
		{ID: "3003", Category: CategorySpoofing, Severity: "high", Source: "fake_transaction_error", Tactic: "transaction_redirect",
			Text: "Your transaction failed. Please resend to this corrected address: 0x1234567890123456789012345678901234567890 (Looks similar but is different)"},
		{ID: "3004", Category: CategorySpoofing, Severity: "high", Source: "fake_airdrop", Tactic: "fake_reward",
			Text: "Airdrop claim: Send 0.01 ETH to 0xABCDEF1234567890ABCDEF1234567890ABCDEF12 to receive 1000 tokens. This address looks legitimate but is actually a scam."},
		{ID: "3005", Category: CategorySpoofing, Severity: "medium", Source: "fake_verification", Tactic: "small_amount_test",
			Text: "Your wallet needs verification. Send a small amount (0.001 ETH) to verify address: 0x9876543210987654321098765432109876543210. This is a test transaction."},

		// General phishing
		{ID: "4001", Category: CategoryPhishing, Severity: "critical", Source: "phishing_email", Tactic: "wallet_lock_scam",
			Text: "Your MetaMask wallet has been locked due to suspicious activity. Click here to unlock and verify your seed phrase."},
		{ID: "4002", Category: CategoryPhishing, Severity: "high", Source: "social_media", Tactic: "fake_airdrop",
			Text: "Congratulations! You've been selected for our exclusive NFT airdrop. Connect your wallet and claim your free NFT now!"},
		{ID: "4003", Category: CategoryPhishing, Severity: "critical", Source: "fake_protocol_alert", Tactic: "fake_emergency",
			Text: "Your DeFi protocol has been compromised. Withdraw all funds immediately to this secure address before they're lost forever."},
		{ID: "4004", Category: CategoryPhishing, Severity: "high", Source: "phishing_email", Tactic: "fake_breach_alert",
			Text: "We detected unauthorized access to your crypto exchange account. Click here to secure your account and verify your identity."},
		{ID: "4005", Category: CategoryPhishing, Severity: "critical", Source: "fake_software_update", Tactic: "malware_distribution",
			Text: "Your wallet needs to be upgraded to support the latest security features. Download this update and enter your private key to complete the upgrade."},

		// On-chain behavior signatures
		{ID: "5001", Category: CategoryTransaction, Severity: "high", Source: "on_chain_analysis", Tactic: "drained_wallet",
			Text: "wallet with zero balance but transaction history emptied wallet pattern"},
		{ID: "5002", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "new_wallet",
			Text: "wallet with no transaction history completely inactive address"},
		{ID: "5003", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "accumulation_wallet",
			Text: "wallet only receiving transactions no outgoing activity accumulation pattern"},
		{ID: "5004", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "distribution_wallet",
			Text: "wallet only sending transactions no incoming activity distribution pattern"},
		{ID: "5005", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "low_activity",
			Text: "wallet with very few transactions low activity pattern"},
		{ID: "5006", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "high_activity",
			Text: "wallet with high transaction frequency active trading pattern"},
		{ID: "5007", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "high_value_transfers",
			Text: "wallet with large transaction amounts high value transfers"},
		{ID: "5008", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "dusting_attack",
			Text: "wallet with very small transaction amounts micro transactions pattern"},
		{ID: "5009", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "isolated_wallet",
			Text: "wallet interacting with single address limited network pattern"},
		{ID: "5010", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "network_wallet",
			Text: "wallet interacting with many addresses diverse network pattern"},
		{ID: "5011", Category: CategoryTransaction, Severity: "medium", Source: "on_chain_analysis", Tactic: "bot_activity",
			Text: "wallet with rapid sequential transactions automated trading pattern"},
		{ID: "5012", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "long_term_holder",
			Text: "wallet with slow transaction pattern infrequent activity"},
		{ID: "5013", Category: CategoryTransaction, Severity: "high", Source: "on_chain_analysis", Tactic: "suspicious_relationships",
			Text: "wallet relationships transaction flow suspicious connections"},
		{ID: "5014", Category: CategoryTransaction, Severity: "high", Source: "on_chain_analysis", Tactic: "wallet_stalking",
			Text: "wallet stalking pattern monitoring other addresses tracking behavior"},
		{ID: "5015", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "whale_wallet",
			Text: "high value wallet large balance significant funds"},
		{ID: "5016", Category: CategoryTransaction, Severity: "low", Source: "on_chain_analysis", Tactic: "low_balance",
			Text: "wallet with very low balance minimal funds"},
	}
}

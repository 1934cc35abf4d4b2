// Package commands implements the write-side command handlers: the
// ConnectProvider/DisconnectProvider/RefreshProviderTokens connection
// lifecycle and the SyncAccounts/SyncHoldings/SyncTransactions/
// ImportFromFile data-ingestion operations. Every handler follows the same
// template: publish Attempted, validate, verify ownership, check
// preconditions, mutate/persist, publish exactly one of Succeeded/Failed.
package commands

import (
	"strings"

	"github.com/dashtam/provider-sync/internal/domain"
)

// normalizeAccountType maps a provider's free-form account type string to
// the closed AccountType enum. An unrecognized type is not an error — it
// degrades to OTHER so sync never fails on an unfamiliar provider category.
func normalizeAccountType(raw string) domain.AccountType {
	switch domain.AccountType(raw) {
	case domain.AccountBrokerage, domain.AccountIRA, domain.AccountRothIRA,
		domain.Account401k, domain.Account403b, domain.AccountHSA,
		domain.AccountChecking, domain.AccountSavings, domain.AccountMoneyMarket,
		domain.AccountCD, domain.AccountCreditCard, domain.AccountLineOfCredit,
		domain.AccountLoan, domain.AccountMortgage:
		return domain.AccountType(raw)
	default:
		return domain.AccountOther
	}
}

// normalizeAssetType maps a provider's free-form security type string to
// the closed AssetType enum.
func normalizeAssetType(raw string) domain.AssetType {
	switch strings.ToUpper(raw) {
	case "EQUITY", "STOCK", "COMMON_STOCK":
		return domain.AssetEquity
	case "OPTION", "CALL", "PUT":
		return domain.AssetOption
	case "ETF":
		return domain.AssetETF
	case "MUTUAL_FUND", "FUND":
		return domain.AssetMutualFund
	case "FIXED_INCOME", "BOND":
		return domain.AssetFixedIncome
	case "FUTURES":
		return domain.AssetFutures
	case "CASH", "MONEY_MARKET", "CASH_EQUIVALENT":
		return domain.AssetCashEquivalent
	case "CRYPTO", "CRYPTOCURRENCY":
		return domain.AssetCryptocurrency
	default:
		return domain.AssetOther
	}
}

// normalizeTransactionType maps a provider's transaction type string
// (case-insensitive) onto the closed TransactionType set.
func normalizeTransactionType(raw string) domain.TransactionType {
	switch strings.ToUpper(raw) {
	case "TRADE", "BUY", "SELL", "SHORT", "COVER", "OPTION", "EXERCISE":
		return domain.TxTrade
	case "TRANSFER", "DEPOSIT", "WITHDRAWAL", "ACH", "WIRE", "JOURNAL":
		return domain.TxTransfer
	case "DIVIDEND", "INTEREST", "CAPITAL_GAIN", "DISTRIBUTION":
		return domain.TxIncome
	case "FEE", "COMMISSION", "MARGIN_INTEREST", "MANAGEMENT_FEE":
		return domain.TxFee
	default:
		return domain.TxOther
	}
}

// normalizeTransactionSubtype maps a provider's subtype string onto the
// closed TransactionSubtype set. When raw is empty, the default subtype is
// derived from the already-mapped transaction type.
func normalizeTransactionSubtype(raw string, txType domain.TransactionType) domain.TransactionSubtype {
	if raw == "" {
		switch txType {
		case domain.TxTrade:
			return domain.SubtypeBuy
		case domain.TxTransfer:
			return domain.SubtypeDeposit
		case domain.TxIncome:
			return domain.SubtypeDividend
		case domain.TxFee:
			return domain.SubtypeAccountFee
		default:
			return domain.SubtypeUnknown
		}
	}

	switch strings.ToUpper(raw) {
	case "BUY", "PURCHASE":
		return domain.SubtypeBuy
	case "SELL", "SALE":
		return domain.SubtypeSell
	case "SHORT_SELL":
		return domain.SubtypeShortSell
	case "BUY_TO_COVER":
		return domain.SubtypeBuyToCover
	case "EXERCISE":
		return domain.SubtypeExercise
	case "ASSIGNMENT":
		return domain.SubtypeAssignment
	case "EXPIRATION":
		return domain.SubtypeExpiration
	case "DEPOSIT", "ACH_IN", "WIRE_IN":
		return domain.SubtypeDeposit
	case "WITHDRAWAL", "ACH_OUT", "WIRE_OUT":
		return domain.SubtypeWithdrawal
	case "TRANSFER_IN", "JOURNAL_IN":
		return domain.SubtypeTransferIn
	case "TRANSFER_OUT", "JOURNAL_OUT":
		return domain.SubtypeTransferOut
	case "DIVIDEND":
		return domain.SubtypeDividend
	case "INTEREST":
		return domain.SubtypeInterest
	case "CAPITAL_GAIN", "CAP_GAIN":
		return domain.SubtypeCapitalGain
	case "DISTRIBUTION":
		return domain.SubtypeDistribution
	case "COMMISSION", "TRADE_FEE":
		return domain.SubtypeCommission
	case "MARGIN_INTEREST", "MARGIN":
		return domain.SubtypeMarginInterest
	case "FEE", "ACCOUNT_FEE":
		return domain.SubtypeAccountFee
	case "ADJUSTMENT":
		return domain.SubtypeAdjustment
	case "JOURNAL":
		return domain.SubtypeJournal
	default:
		return domain.SubtypeUnknown
	}
}

// normalizeTransactionStatus maps a provider's status string onto the
// closed TransactionStatus set. Unrecognized statuses default to SETTLED,
// since most providers only report history once it has cleared.
func normalizeTransactionStatus(raw string) domain.TransactionStatus {
	switch strings.ToUpper(raw) {
	case "SETTLED", "EXECUTED", "COMPLETE", "COMPLETED":
		return domain.TxStatusSettled
	case "PENDING", "PROCESSING", "IN_PROGRESS":
		return domain.TxStatusPending
	case "FAILED", "REJECTED", "ERROR":
		return domain.TxStatusFailed
	case "CANCELLED", "CANCELED", "VOIDED":
		return domain.TxStatusCancelled
	default:
		return domain.TxStatusSettled
	}
}

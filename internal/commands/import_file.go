package commands

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/providercreds"
	"github.com/dashtam/provider-sync/internal/result"
)

// fileImportNamespace derives a stable provider id from a file-import slug.
// File-import providers (QFX/OFX/CSV parsers) have no external provider
// registry entry the way an OAuth brokerage does, but ProviderConnection
// still requires a provider_id; a version-5 UUID keyed on the slug gives
// every (user, slug) pair the same connection across repeated imports
// without needing a separate provider lookup table.
var fileImportNamespace = uuid.MustParse("6e6f7468-6d65-7373-6167-652e696d706f")

// ImportFromFileInput is the immutable command for ingesting a
// bank/brokerage statement export (QFX/OFX/CSV). Unlike the live sync
// commands, it carries no connection_id: the handler finds or creates a
// single connection per (user, provider_slug) itself, since a file upload
// has no prior OAuth/API-key handshake to have created one.
type ImportFromFileInput struct {
	UserID       uuid.UUID
	ProviderSlug string
	FileName     string
	FileFormat   string
	FileContent  []byte
}

// ImportFromFileOutput reports what the import did.
type ImportFromFileOutput struct {
	AccountsUpdated     int
	TransactionsNew     int
	TransactionsSkipped int
}

// ImportFromFile parses a statement export and upserts its accounts and
// transactions, the same as a live provider sync but sourced from an
// uploaded file instead of a network call. The file's bytes themselves are
// never persisted — only what the adapter extracts from them. Progress
// events are published periodically so a long-running import (large
// CSV/QFX file) gives a caller visibility before it completes: after every
// ProgressRecordInterval transactions, or whenever cumulative progress
// crosses another ProgressPercentInterval of the total, whichever comes
// first. The terminal event is always FileImportSucceeded/Failed, never a
// trailing Progress.
func (h *Handlers) ImportFromFile(ctx context.Context, in ImportFromFileInput) result.Result[ImportFromFileOutput, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeFileImportAttempted, now, in.UserID, events.FileImportPayload{
		ProviderSlug: in.ProviderSlug,
		FileName:     in.FileName,
		FileFormat:   in.FileFormat,
	}))

	fail := func(code Code, message string) result.Result[ImportFromFileOutput, Failure] {
		h.publish(ctx, events.New(events.TypeFileImportFailed, h.now(), in.UserID, events.FileImportPayload{
			ProviderSlug:  in.ProviderSlug,
			FileName:      in.FileName,
			FileFormat:    in.FileFormat,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[ImportFromFileOutput, Failure](Failure{Code: code, Message: message})
	}

	if len(in.FileContent) == 0 {
		return fail(CodeInvalidFile, "file content is empty")
	}
	if len(in.ProviderSlug) == 0 || len(in.ProviderSlug) > 50 {
		return fail(CodeProviderNotFound, "provider_slug must be 1-50 characters")
	}

	provider, err := h.Factory.GetProvider(in.ProviderSlug)
	if err != nil {
		return fail(CodeProviderNotFound, err.Error())
	}

	providerID := uuid.NewSHA1(fileImportNamespace, []byte(strings.ToLower(in.ProviderSlug)))
	conn, err := h.Connections.FindByUserAndProvider(ctx, in.UserID, providerID)
	if err != nil {
		return fail(CodeImportFailed, err.Error())
	}
	if conn == nil {
		conn, err = h.createFileImportConnection(ctx, in.UserID, providerID, in.ProviderSlug, now)
		if err != nil {
			return fail(CodeImportFailed, err.Error())
		}
	}

	bundle := ports.CredentialBundle{
		"file_content": in.FileContent,
		"file_format":  in.FileFormat,
		"file_name":    in.FileName,
	}

	providerAccounts, err := provider.FetchAccounts(ctx, bundle)
	if err != nil {
		f := translateProviderError(err)
		return fail(f.Code, f.Message)
	}
	if len(providerAccounts) == 0 {
		return fail(CodeNoAccounts, "file contains no recognizable accounts")
	}

	out := ImportFromFileOutput{}

	type pending struct {
		accountID uuid.UUID
		txs       []ports.ProviderTransactionData
	}
	var work []pending
	totalRecords := 0

	for _, pa := range providerAccounts {
		if ctx.Err() != nil {
			return fail(CodeCancelled, ctx.Err().Error())
		}
		_, _, _, syncErr := h.upsertAccount(ctx, conn.ID, pa, now)
		if syncErr != nil {
			h.Log.Warn().Err(syncErr).Str("provider_account_id", pa.ProviderAccountID).Msg("file import: account upsert error, isolated")
			continue
		}
		out.AccountsUpdated++

		account, err := h.Accounts.FindByProviderAccountID(ctx, conn.ID, pa.ProviderAccountID)
		if err != nil || account == nil {
			continue
		}
		txs, err := provider.FetchTransactions(ctx, bundle, pa.ProviderAccountID, nil, nil)
		if err != nil {
			h.Log.Warn().Err(err).Str("provider_account_id", pa.ProviderAccountID).Msg("file import: transaction fetch error, isolated")
			continue
		}
		work = append(work, pending{accountID: account.ID, txs: txs})
		totalRecords += len(txs)
	}

	processed := 0
	lastReportedPercent := 0
	for _, p := range work {
		for _, pt := range p.txs {
			if ctx.Err() != nil {
				return fail(CodeCancelled, ctx.Err().Error())
			}
			created, syncErr := h.insertTransactionIfNew(ctx, p.accountID, pt, now)
			if syncErr != nil {
				h.Log.Warn().Err(syncErr).Str("provider_transaction_id", pt.ProviderTransactionID).Msg("file import: transaction insert error, isolated")
			} else if created {
				out.TransactionsNew++
			} else {
				out.TransactionsSkipped++
			}
			processed++

			percent := 0.0
			if totalRecords > 0 {
				percent = float64(processed) / float64(totalRecords) * 100
			}
			crossedPercent := int(percent)/h.ProgressPercentInterval > lastReportedPercent/h.ProgressPercentInterval
			if processed%h.ProgressRecordInterval == 0 || crossedPercent {
				lastReportedPercent = int(percent)
				h.publish(ctx, events.New(events.TypeFileImportProgress, h.now(), in.UserID, events.FileImportProgressPayload{
					ProviderSlug:     in.ProviderSlug,
					FileName:         in.FileName,
					FileFormat:       in.FileFormat,
					RecordsProcessed: processed,
					TotalRecords:     totalRecords,
					ProgressPercent:  percent,
				}))
			}
		}
	}

	if r := conn.RecordSync(now); r.IsFailure() {
		return fail(CodeImportFailed, string(r.Error()))
	}
	if err := h.Connections.Save(ctx, conn); err != nil {
		return fail(CodeImportFailed, err.Error())
	}

	h.publish(ctx, events.New(events.TypeFileImportSucceeded, now, in.UserID, events.FileImportPayload{
		ProviderSlug:        in.ProviderSlug,
		FileName:            in.FileName,
		FileFormat:          in.FileFormat,
		AccountsUpdated:     out.AccountsUpdated,
		TransactionsNew:     out.TransactionsNew,
		TransactionsSkipped: out.TransactionsSkipped,
	}))
	return result.Success[ImportFromFileOutput, Failure](out)
}

// createFileImportConnection builds the placeholder ACTIVE connection a
// file-import provider needs to anchor its accounts. A FILE_IMPORT
// credential holds no secret, but ProviderConnection requires non-nil
// credentials to be ACTIVE, so a marker bundle is run through the same
// cipher every other credential uses rather than special-cased.
func (h *Handlers) createFileImportConnection(ctx context.Context, userID, providerID uuid.UUID, slug string, now time.Time) (*domain.ProviderConnection, error) {
	encrypted, err := h.Cipher.Encrypt(ports.CredentialBundle{"placeholder": true})
	if err != nil {
		return nil, err
	}
	creds, err := providercreds.New(encrypted, providercreds.FileImport, nil)
	if err != nil {
		return nil, err
	}
	conn, err := domain.NewProviderConnection(
		newID(), userID, providerID, slug,
		domain.ConnectionActive, nil, &creds,
		&now, nil, now, now,
	)
	if err != nil {
		return nil, err
	}
	if err := h.Connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

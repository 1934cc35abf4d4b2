package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/ports"
)

// FileImportAdapter satisfies ProviderAdapter for file-based providers
// (bank/brokerage statement exports). The credential bundle carries
// {file_content, file_format, file_name} instead of a token; every Fetch
// call re-parses the file content it is handed, since the adapter itself
// is stateless between calls.
//
// QFX/OFX is a loosely-SGML format (leaf tags are unclosed, aggregate tags
// are closed) with no maintained Go parser in this dependency set, so the
// scanner below is hand-written against the fields the sync pipeline
// consumes. CSV import uses encoding/csv.
type FileImportAdapter struct{}

// NewFileImportAdapter returns a stateless file-import adapter.
func NewFileImportAdapter() *FileImportAdapter {
	return &FileImportAdapter{}
}

func fileBundle(creds ports.CredentialBundle) (content []byte, format string, err error) {
	raw, ok := creds["file_content"]
	if !ok {
		return nil, "", &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: "credential bundle missing file_content"}
	}
	switch v := raw.(type) {
	case []byte:
		content = v
	case string:
		content = []byte(v)
	default:
		return nil, "", &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: "file_content must be string or []byte"}
	}
	format, _ = credentialString(creds, "file_format")
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	return content, format, nil
}

func (a *FileImportAdapter) FetchAccounts(ctx context.Context, credentials ports.CredentialBundle) ([]ports.ProviderAccountData, error) {
	content, format, err := fileBundle(credentials)
	if err != nil {
		return nil, err
	}
	switch format {
	case "qfx", "ofx":
		parsed, perr := parseOFX(content)
		if perr != nil {
			return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: perr.Error()}
		}
		return parsed.accounts(), nil
	case "csv":
		parsed, perr := parseCSV(content, credentials)
		if perr != nil {
			return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: perr.Error()}
		}
		return parsed.accounts(), nil
	default:
		return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: fmt.Sprintf("unsupported file_format %q", format)}
	}
}

func (a *FileImportAdapter) FetchTransactions(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string, start, end *time.Time) ([]ports.ProviderTransactionData, error) {
	content, format, err := fileBundle(credentials)
	if err != nil {
		return nil, err
	}
	var all []ports.ProviderTransactionData
	switch format {
	case "qfx", "ofx":
		parsed, perr := parseOFX(content)
		if perr != nil {
			return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: perr.Error()}
		}
		all = parsed.transactions(providerAccountID)
	case "csv":
		parsed, perr := parseCSV(content, credentials)
		if perr != nil {
			return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: perr.Error()}
		}
		all = parsed.transactions(providerAccountID)
	default:
		return nil, &ports.ProviderError{Code: ports.ProviderErrInvalidFile, Message: fmt.Sprintf("unsupported file_format %q", format)}
	}

	if start == nil && end == nil {
		return all, nil
	}
	out := make([]ports.ProviderTransactionData, 0, len(all))
	for _, tx := range all {
		if start != nil && tx.TransactionDate.Before(*start) {
			continue
		}
		if end != nil && tx.TransactionDate.After(*end) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// FetchHoldings returns no data: statement exports (QFX/OFX/CSV) carry
// transaction history, not point-in-time position data.
func (a *FileImportAdapter) FetchHoldings(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string) ([]ports.ProviderHoldingData, error) {
	return nil, nil
}

// --- OFX/QFX parsing ---

type ofxTransaction struct {
	fitID   string
	trnType string
	amount  string
	posted  string
	name    string
	memo    string
}

type ofxStatement struct {
	acctID    string
	acctType  string
	currency  string
	ledgerBal string
	txns      []ofxTransaction
}

type ofxDocument struct {
	statements []*ofxStatement
}

func (d *ofxDocument) accounts() []ports.ProviderAccountData {
	out := make([]ports.ProviderAccountData, 0, len(d.statements))
	for _, s := range d.statements {
		if s.acctID == "" {
			continue
		}
		currency := s.currency
		if currency == "" {
			currency = "USD"
		}
		balance := decimal.Zero
		if s.ledgerBal != "" {
			if parsed, err := decimal.NewFromString(s.ledgerBal); err == nil {
				balance = parsed
			}
		}
		out = append(out, ports.ProviderAccountData{
			ProviderAccountID:   s.acctID,
			AccountNumberMasked: maskAccountNumber(s.acctID),
			Name:                fmt.Sprintf("%s %s", s.acctType, s.acctID),
			AccountType:         s.acctType,
			Balance:             balance,
			Currency:            currency,
			IsActive:            true,
			RawData:             map[string]any{"acct_type": s.acctType},
		})
	}
	return out
}

func (d *ofxDocument) transactions(providerAccountID string) []ports.ProviderTransactionData {
	var out []ports.ProviderTransactionData
	for _, s := range d.statements {
		if s.acctID != providerAccountID {
			continue
		}
		currency := s.currency
		if currency == "" {
			currency = "USD"
		}
		for _, t := range s.txns {
			amount, err := decimal.NewFromString(t.amount)
			if err != nil {
				continue
			}
			data := ports.ProviderTransactionData{
				ProviderTransactionID: t.fitID,
				TransactionType:       t.trnType,
				Status:                "SETTLED",
				Amount:                amount,
				Currency:              currency,
				Description:           strings.TrimSpace(t.name + " " + t.memo),
				TransactionDate:       parseOFXDate(t.posted),
				RawData:               map[string]any{"fitid": t.fitID, "memo": t.memo},
			}
			out = append(out, data)
		}
	}
	return out
}

func maskAccountNumber(acctID string) string {
	if len(acctID) <= 4 {
		return acctID
	}
	return strings.Repeat("*", len(acctID)-4) + acctID[len(acctID)-4:]
}

func parseOFXDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "["); idx >= 0 {
		raw = raw[:idx]
	}
	layouts := []string{"20060102150405", "20060102"}
	for _, layout := range layouts {
		if len(raw) >= len(layout) {
			if t, err := time.Parse(layout, raw[:len(layout)]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// parseOFX scans a QFX/OFX SGML document line by line. Aggregate tags
// (BANKACCTFROM, STMTTRN, STMTRS, LEDGERBAL) are always paired with a
// closing tag; leaf tags carry their value on the same line and are never
// closed, matching real-world QFX/OFX exports.
func parseOFX(content []byte) (*ofxDocument, error) {
	doc := &ofxDocument{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *ofxStatement
	var inTxn bool
	var txn ofxTransaction
	var inLedger bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "<") {
			continue
		}

		if strings.HasPrefix(line, "</") {
			tag := strings.TrimSuffix(strings.TrimPrefix(line, "</"), ">")
			switch tag {
			case "STMTTRN":
				if current != nil && inTxn {
					current.txns = append(current.txns, txn)
				}
				inTxn = false
			case "LEDGERBAL":
				inLedger = false
			case "STMTRS", "CCSTMTRS":
				if current != nil {
					doc.statements = append(doc.statements, current)
				}
				current = nil
			}
			continue
		}

		idx := strings.Index(line, ">")
		if idx < 0 {
			continue
		}
		tag := line[1:idx]
		value := strings.TrimSpace(line[idx+1:])

		switch tag {
		case "STMTRS", "CCSTMTRS":
			current = &ofxStatement{}
		case "STMTTRN":
			inTxn = true
			txn = ofxTransaction{}
		case "LEDGERBAL":
			inLedger = true
		}
		if current == nil {
			continue
		}

		switch {
		case inTxn:
			switch tag {
			case "TRNTYPE":
				txn.trnType = value
			case "DTPOSTED":
				txn.posted = value
			case "TRNAMT":
				txn.amount = value
			case "FITID":
				txn.fitID = value
			case "NAME", "PAYEE":
				txn.name = value
			case "MEMO":
				txn.memo = value
			}
		case inLedger:
			if tag == "BALAMT" {
				current.ledgerBal = value
			}
		default:
			switch tag {
			case "CURDEF":
				current.currency = value
			case "ACCTID":
				current.acctID = value
			case "ACCTTYPE":
				current.acctType = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ofx document: %w", err)
	}
	if len(doc.statements) == 0 {
		return nil, fmt.Errorf("no statement (STMTRS/CCSTMTRS) found in document")
	}
	return doc, nil
}

// --- CSV parsing ---

// csvDocument models a flat "Date,Description,Amount,Type" export with no
// embedded account metadata; the file name from the credential bundle
// stands in for the provider account id, matching how a user-uploaded
// generic CSV export has no native account identifier to key on.
type csvDocument struct {
	acctID string
	rows   []csvRow
}

type csvRow struct {
	date        time.Time
	description string
	amount      decimal.Decimal
	txType      string
}

func (d *csvDocument) accounts() []ports.ProviderAccountData {
	total := decimal.Zero
	for _, r := range d.rows {
		total = total.Add(r.amount)
	}
	return []ports.ProviderAccountData{{
		ProviderAccountID:   d.acctID,
		AccountNumberMasked: maskAccountNumber(d.acctID),
		Name:                d.acctID,
		AccountType:         "other",
		Balance:             total,
		Currency:            "USD",
		IsActive:            true,
		RawData:             map[string]any{"source": "csv_import"},
	}}
}

func (d *csvDocument) transactions(providerAccountID string) []ports.ProviderTransactionData {
	if providerAccountID != d.acctID {
		return nil
	}
	out := make([]ports.ProviderTransactionData, 0, len(d.rows))
	for i, r := range d.rows {
		out = append(out, ports.ProviderTransactionData{
			ProviderTransactionID: fmt.Sprintf("%s-%d", d.acctID, i),
			TransactionType:       r.txType,
			Status:                "SETTLED",
			Amount:                r.amount,
			Currency:              "USD",
			Description:           r.description,
			TransactionDate:       r.date,
			RawData:               map[string]any{"row": i},
		})
	}
	return out
}

func parseCSV(content []byte, credentials ports.CredentialBundle) (*csvDocument, error) {
	fileName, _ := credentialString(credentials, "file_name")
	if fileName == "" {
		fileName = "csv-import"
	}
	doc := &csvDocument{acctID: fileName}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateIdx, hasDate := cols["date"]
	descIdx, hasDesc := cols["description"]
	amountIdx, hasAmount := cols["amount"]
	typeIdx, hasType := cols["type"]
	if !hasDate || !hasAmount {
		return nil, fmt.Errorf("csv file missing required date/amount columns")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		date, err := parseCSVDate(record[dateIdx])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record[amountIdx]))
		if err != nil {
			continue
		}
		row := csvRow{date: date, amount: amount}
		if hasDesc && descIdx < len(record) {
			row.description = record[descIdx]
		}
		if hasType && typeIdx < len(record) {
			row.txType = record[typeIdx]
		}
		doc.rows = append(doc.rows, row)
	}
	return doc, nil
}

func parseCSVDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

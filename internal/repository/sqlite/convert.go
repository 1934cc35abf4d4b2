package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/money"
)

// timeLayout is the wire format every timestamp column uses: RFC3339 with
// a fixed nine-digit fractional second, always UTC, so every stored value
// has the same width and lexicographic and chronological ordering coincide.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullAssetType(t *domain.AssetType) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// encodeMoneyAmount stores a Money's decimal amount as its canonical
// base-10 string; the currency lives in its own column so a single row
// never needs more than one string per Money field.
func encodeMoneyAmount(m money.Money) string {
	return m.Amount().String()
}

func decodeMoney(amount, currency string) (money.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(d, currency)
}

func nullMoneyAmount(m *money.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Amount().String(), Valid: true}
}

func decodeNullMoney(ns sql.NullString, currency string) (*money.Money, error) {
	if !ns.Valid {
		return nil, nil
	}
	m, err := decodeMoney(ns.String, currency)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decodeNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

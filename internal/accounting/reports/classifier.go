package reports

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Section identifies a balance sheet section.
type Section string

const (
	SectionNonCurrentAssets Section = "NON_CURRENT_ASSETS"
	SectionCurrentAssets    Section = "CURRENT_ASSETS"
	SectionLiabilities      Section = "LIABILITIES"
	SectionEquity           Section = "EQUITY"
)

// Bucket is a keyword-matched line of the balance sheet.
type Bucket struct {
	Key      string
	Label    string
	Section  Section
	Keywords []string
}

// Uncategorized bucket keys, one per account type.
const (
	BucketUncategorizedAssets      = "uncategorized_assets"
	BucketUncategorizedLiabilities = "uncategorized_liabilities"
	BucketUncategorizedEquity      = "uncategorized_equity"
)

// Buckets are listed in match order per account type; the first bucket whose
// keyword appears in the account name wins.
var (
	assetBuckets = []Bucket{
		{"accumulated_depreciation", "Accumulated Depreciation", SectionNonCurrentAssets, []string{"accumulated depreciation", "depreciation"}},
		{"vendor_advances", "Vendor Advances", SectionCurrentAssets, []string{"vendor advance", "supplier advance"}},
		{"vat_receivable", "VAT Receivable", SectionCurrentAssets, []string{"vat receivable", "input vat", "vat input", "vat credit"}},
		{"inventory", "Inventory", SectionCurrentAssets, []string{"inventory", "stock", "merchandise"}},
		{"accounts_receivable", "Accounts Receivable", SectionCurrentAssets, []string{"accounts receivable", "receivable", "debtor", "trade receivable", "a/r"}},
		{"cash_and_bank", "Cash and Bank", SectionCurrentAssets, []string{"cash", "bank", "petty cash"}},
		{"other_current_assets", "Other Current Assets", SectionCurrentAssets, []string{"prepaid", "prepayment", "deposit", "advance", "accrued income"}},
		{"fixed_assets", "Fixed Assets", SectionNonCurrentAssets, []string{"fixed asset", "property", "plant", "equipment", "vehicle", "building", "machinery", "furniture", "computer", "leasehold"}},
		{"other_non_current_assets", "Other Non-Current Assets", SectionNonCurrentAssets, []string{"intangible", "goodwill", "patent", "trademark", "copyright", "long-term investment"}},
	}
	liabilityBuckets = []Bucket{
		{"vat_payable", "VAT Payable", SectionLiabilities, []string{"vat payable", "output vat", "vat output", "vat liability"}},
		{"paye_payable", "PAYE Payable", SectionLiabilities, []string{"paye", "pay as you earn", "income tax payable"}},
		{"pension_payable", "Pension Payable", SectionLiabilities, []string{"pension", "provident fund", "retirement"}},
		{"payroll_liabilities", "Payroll Liabilities", SectionLiabilities, []string{"payroll liability", "salary payable", "salaries payable", "wages payable", "payroll"}},
		{"customer_advances", "Customer Advances", SectionLiabilities, []string{"customer advance", "deferred revenue", "unearned revenue", "deposit received"}},
		{"other_liabilities", "Other Liabilities", SectionLiabilities, []string{"accrued expense", "other liability", "loan payable", "note payable"}},
		{"accounts_payable", "Accounts Payable", SectionLiabilities, []string{"accounts payable", "payable", "creditor", "trade payable", "a/p"}},
	}
	equityBuckets = []Bucket{
		{"opening_balance_equity", "Opening Balance Equity", SectionEquity, []string{"opening balance equity"}},
		{"retained_earnings", "Retained Earnings", SectionEquity, []string{"retained earnings", "retained earning"}},
		{"owners_equity", "Owner's Equity", SectionEquity, []string{"owner's equity", "owner equity", "capital", "owner capital", "member capital"}},
	}
	uncategorized = map[accounting.AccountType]Bucket{
		accounting.AccountTypeAsset:     {BucketUncategorizedAssets, "Uncategorized", SectionCurrentAssets, nil},
		accounting.AccountTypeLiability: {BucketUncategorizedLiabilities, "Uncategorized", SectionLiabilities, nil},
		accounting.AccountTypeEquity:    {BucketUncategorizedEquity, "Uncategorized", SectionEquity, nil},
	}
)

// Classify returns the bucket for a balance sheet account. Revenue and
// expense accounts report false; they flow into current earnings.
func Classify(name string, typ accounting.AccountType) (Bucket, bool) {
	var buckets []Bucket
	switch typ {
	case accounting.AccountTypeAsset:
		buckets = assetBuckets
	case accounting.AccountTypeLiability:
		buckets = liabilityBuckets
	case accounting.AccountTypeEquity:
		buckets = equityBuckets
	default:
		return Bucket{}, false
	}
	fold := cases.Fold()
	folded := fold.String(name)
	for _, bucket := range buckets {
		for _, kw := range bucket.Keywords {
			if strings.Contains(folded, fold.String(kw)) {
				return bucket, true
			}
		}
	}
	return uncategorized[typ], true
}

// bucketOrder lists every bucket of a section in display order.
func bucketOrder(section Section) []Bucket {
	var out []Bucket
	for _, group := range [][]Bucket{assetBuckets, liabilityBuckets, equityBuckets} {
		for _, b := range group {
			if b.Section == section {
				out = append(out, b)
			}
		}
	}
	for _, typ := range []accounting.AccountType{accounting.AccountTypeAsset, accounting.AccountTypeLiability, accounting.AccountTypeEquity} {
		if b := uncategorized[typ]; b.Section == section {
			out = append(out, b)
		}
	}
	return out
}

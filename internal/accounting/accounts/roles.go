package accounts

import "github.com/odyssey-erp/odyssey-ledger/internal/accounting"

// Role names a canonical account that posting rules and reports look up
// without assuming a fixed code scheme.
type Role struct {
	Key      string
	Type     accounting.AccountType
	Patterns []string
	// Exclude drops candidates whose name contains any of these fragments.
	Exclude []string
	// Codes are conventional codes tried by code-based resolvers.
	Codes []string
}

// Canonical roles. Patterns are ordered from most to least specific.
var (
	RoleCash = Role{Key: "cash", Type: accounting.AccountTypeAsset,
		Patterns: []string{"cash on hand", "cash"}, Codes: []string{"1000"}}
	RoleBank = Role{Key: "bank", Type: accounting.AccountTypeAsset,
		Patterns: []string{"bank"}, Codes: []string{"1100"}}
	RoleReceivable = Role{Key: "receivable", Type: accounting.AccountTypeAsset,
		Patterns: []string{"accounts receivable", "trade receivable", "receivable", "debtors"},
		Exclude:  []string{"vat", "tax"}, Codes: []string{"1200"}}
	RoleInventory = Role{Key: "inventory", Type: accounting.AccountTypeAsset,
		Patterns: []string{"inventory", "stock"}, Codes: []string{"1300"}}
	RoleVATReceivable = Role{Key: "vat_receivable", Type: accounting.AccountTypeAsset,
		Patterns: []string{"vat receivable", "input vat", "input tax", "vat"}, Codes: []string{"1400"}}
	RoleFixedAssets = Role{Key: "fixed_assets", Type: accounting.AccountTypeAsset,
		Patterns: []string{"fixed asset", "property", "equipment", "furniture", "vehicle"},
		Exclude:  []string{"accumulated"}, Codes: []string{"1500"}}
	RoleAccumulatedDepreciation = Role{Key: "accumulated_depreciation", Type: accounting.AccountTypeAsset,
		Patterns: []string{"accumulated depreciation"}, Codes: []string{"1590"}}
	RolePayable = Role{Key: "payable", Type: accounting.AccountTypeLiability,
		Patterns: []string{"accounts payable", "trade payable", "payable", "creditors"},
		Exclude:  []string{"vat", "tax", "salar", "wage", "payroll", "paye", "pension"}, Codes: []string{"2000"}}
	RoleVATPayable = Role{Key: "vat_payable", Type: accounting.AccountTypeLiability,
		Patterns: []string{"vat payable", "output vat", "sales tax payable", "vat"}, Codes: []string{"2100"}}
	RolePayrollPayable = Role{Key: "payroll_payable", Type: accounting.AccountTypeLiability,
		Patterns: []string{"salaries payable", "wages payable", "payroll payable", "accrued salar"}, Codes: []string{"2200"}}
	RolePAYEPayable = Role{Key: "paye_payable", Type: accounting.AccountTypeLiability,
		Patterns: []string{"paye", "income tax payable", "withholding tax"}, Codes: []string{"2300"}}
	RolePensionPayable = Role{Key: "pension_payable", Type: accounting.AccountTypeLiability,
		Patterns: []string{"pension"}, Codes: []string{"2400"}}
	RoleOpeningBalanceEquity = Role{Key: "opening_balance_equity", Type: accounting.AccountTypeEquity,
		Patterns: []string{"opening balance equity", "owner's equity", "owners equity", "retained earnings"}, Codes: []string{"3000"}}
	RoleRetainedEarnings = Role{Key: "retained_earnings", Type: accounting.AccountTypeEquity,
		Patterns: []string{"retained earnings", "accumulated profit"}, Codes: []string{"3200"}}
	RoleSales = Role{Key: "sales", Type: accounting.AccountTypeRevenue,
		Patterns: []string{"sales revenue", "sales", "revenue"}, Codes: []string{"4000"}}
	RoleGainOnDisposal = Role{Key: "gain_on_disposal", Type: accounting.AccountTypeRevenue,
		Patterns: []string{"gain on disposal", "gain on sale", "other income"}, Codes: []string{"4900"}}
	RoleCOGS = Role{Key: "cogs", Type: accounting.AccountTypeExpense,
		Patterns: []string{"cost of goods sold", "cogs", "cost of sales"}, Codes: []string{"5000"}}
	RoleSalaryExpense = Role{Key: "salary_expense", Type: accounting.AccountTypeExpense,
		Patterns: []string{"salaries", "salary", "wages", "payroll expense"}, Codes: []string{"6000"}}
	RoleDepreciationExpense = Role{Key: "depreciation_expense", Type: accounting.AccountTypeExpense,
		Patterns: []string{"depreciation expense", "depreciation"}, Codes: []string{"6100"}}
	RoleBadDebt = Role{Key: "bad_debt", Type: accounting.AccountTypeExpense,
		Patterns: []string{"bad debt expense", "bad debt", "doubtful", "operating expense"}, Codes: []string{"6200"}}
	RoleLossOnDisposal = Role{Key: "loss_on_disposal", Type: accounting.AccountTypeExpense,
		Patterns: []string{"loss on disposal", "loss on sale", "write-off", "operating expense"}, Codes: []string{"6300"}}
)

type seedAccount struct {
	Code string
	Name string
	Type accounting.AccountType
}

// defaultChart is the protected chart installed by SeedDefaults.
var defaultChart = []seedAccount{
	{"1000", "Cash", accounting.AccountTypeAsset},
	{"1100", "Bank", accounting.AccountTypeAsset},
	{"1200", "Accounts Receivable", accounting.AccountTypeAsset},
	{"1300", "Inventory", accounting.AccountTypeAsset},
	{"1400", "VAT Receivable", accounting.AccountTypeAsset},
	{"1500", "Fixed Assets", accounting.AccountTypeAsset},
	{"1590", "Accumulated Depreciation", accounting.AccountTypeAsset},
	{"2000", "Accounts Payable", accounting.AccountTypeLiability},
	{"2100", "VAT Payable", accounting.AccountTypeLiability},
	{"2200", "Salaries Payable", accounting.AccountTypeLiability},
	{"2300", "PAYE Payable", accounting.AccountTypeLiability},
	{"2400", "Pension Payable", accounting.AccountTypeLiability},
	{"3000", "Opening Balance Equity", accounting.AccountTypeEquity},
	{"3100", "Owner's Equity", accounting.AccountTypeEquity},
	{"3200", "Retained Earnings", accounting.AccountTypeEquity},
	{"4000", "Sales Revenue", accounting.AccountTypeRevenue},
	{"4900", "Other Income", accounting.AccountTypeRevenue},
	{"5000", "Cost of Goods Sold", accounting.AccountTypeExpense},
	{"6000", "Salaries Expense", accounting.AccountTypeExpense},
	{"6100", "Depreciation Expense", accounting.AccountTypeExpense},
	{"6200", "Bad Debt Expense", accounting.AccountTypeExpense},
	{"6300", "Loss on Disposal", accounting.AccountTypeExpense},
	{"6900", "Operating Expenses", accounting.AccountTypeExpense},
}

// typePrefix is the leading code digit per account type.
var typePrefix = map[accounting.AccountType]int{
	accounting.AccountTypeAsset:     1,
	accounting.AccountTypeLiability: 2,
	accounting.AccountTypeEquity:    3,
	accounting.AccountTypeRevenue:   4,
	accounting.AccountTypeExpense:   5,
}

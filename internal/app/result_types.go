package app

import "github.com/arunteja30/poultry-tracker/internal/core"

// UserSession is returned by AuthenticateUser and RegisterCompany. It carries
// everything the web layer needs to mint a session token.
type UserSession struct {
	User    *core.User
	Company *core.Company
}

// EntryResult is returned by entry mutations. Warning is non-nil when the
// mutation left the cycle's feed stock at or below the low-stock threshold.
type EntryResult struct {
	Entry   *core.DailyEntry
	Warning *core.LowStockWarning
}

// ReportParseResult is returned by ParseDailyReport.
type ReportParseResult struct {
	Draft                *core.DailyReportDraft
	ClarificationMessage string
	IsClarification      bool
}

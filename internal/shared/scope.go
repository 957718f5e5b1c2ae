package shared

import "fmt"

// Scope identifies the tenant and optional branch a call operates on.
// BranchID zero means every branch of the business.
type Scope struct {
	BusinessID int64
	BranchID   int64
}

// NewScope builds a scope for the given business and branch.
func NewScope(businessID, branchID int64) Scope {
	return Scope{BusinessID: businessID, BranchID: branchID}
}

// Validate ensures the business is set.
func (s Scope) Validate() error {
	if s.BusinessID <= 0 {
		return ErrScopeRequired
	}
	if s.BranchID < 0 {
		return fmt.Errorf("scope: invalid branch %d", s.BranchID)
	}
	return nil
}

// HasBranch reports whether the scope is narrowed to one branch.
func (s Scope) HasBranch() bool {
	return s.BranchID > 0
}

// BranchPtr returns the branch as a nullable column value.
func (s Scope) BranchPtr() *int64 {
	if !s.HasBranch() {
		return nil
	}
	id := s.BranchID
	return &id
}

func (s Scope) String() string {
	if s.HasBranch() {
		return fmt.Sprintf("%d/%d", s.BusinessID, s.BranchID)
	}
	return fmt.Sprintf("%d", s.BusinessID)
}

package identity

// PrincipalIdentity adapts a Principal into the Identity interface for token
// issuance.
type PrincipalIdentity struct {
	principal *Principal
}

// NewIdentityFromPrincipal returns an Identity adapter for the provided principal.
func NewIdentityFromPrincipal(principal *Principal) Identity {
	if principal == nil {
		return nil
	}
	return PrincipalIdentity{principal: principal}
}

// ID returns the principal's ID as a string.
func (p PrincipalIdentity) ID() string {
	if p.principal == nil {
		return ""
	}
	return p.principal.ID.String()
}

// Email returns the principal's email address.
func (p PrincipalIdentity) Email() string {
	if p.principal == nil {
		return ""
	}
	return p.principal.Email
}

// Role returns the principal's global role.
func (p PrincipalIdentity) Role() Role {
	if p.principal == nil {
		return ""
	}
	return p.principal.Role
}

// Status returns the principal's lifecycle status.
func (p PrincipalIdentity) Status() Status {
	if p.principal == nil {
		return ""
	}
	p.principal.EnsureStatus()
	return p.principal.Status
}

var _ Identity = PrincipalIdentity{}

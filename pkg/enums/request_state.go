package enums

// LicenseState is the derived license decision of a request.
type LicenseState string

const (
	LicenseStatePending  LicenseState = "pending"
	LicenseStateGranted  LicenseState = "granted"
	LicenseStateRejected LicenseState = "rejected"
	// LicenseStateConflicted marks a request that was both granted and rejected.
	LicenseStateConflicted LicenseState = "conflicted"
)

func (l LicenseState) String() string {
	return string(l)
}

// DeriveLicenseState maps the stored flags onto a LicenseState.
func DeriveLicenseState(given, rejected bool) LicenseState {
	switch {
	case given && rejected:
		return LicenseStateConflicted
	case given:
		return LicenseStateGranted
	case rejected:
		return LicenseStateRejected
	default:
		return LicenseStatePending
	}
}

// AccountsState is the derived financial check outcome.
type AccountsState string

const (
	AccountsStateUnset    AccountsState = "unset"
	AccountsStateApproved AccountsState = "approved"
	AccountsStateDenied   AccountsState = "denied"
)

func (a AccountsState) String() string {
	return string(a)
}

func DeriveAccountsState(verified *bool) AccountsState {
	if verified == nil {
		return AccountsStateUnset
	}
	if *verified {
		return AccountsStateApproved
	}
	return AccountsStateDenied
}

// ActionStatus is returned by successful workflow mutations.
type ActionStatus string

const (
	StatusLicenseGranted  ActionStatus = "license_granted"
	StatusLicenseRejected ActionStatus = "license_rejected"
	StatusAccountsChecked ActionStatus = "accounts_checked"
	StatusFinalized       ActionStatus = "finalized"
)

func (s ActionStatus) String() string {
	return string(s)
}

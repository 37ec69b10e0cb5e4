package models

// ProviderKind discriminates the two profile kinds that can own working
// hours, appointments, certificates and prescriptions.
type ProviderKind string

const (
	ProviderDoctor   ProviderKind = "doctor"
	ProviderRedCross ProviderKind = "red_cross"
)

// Provider is a tagged reference to a DoctorProfile or a RedCrossProfile.
type Provider struct {
	Kind ProviderKind
	ID   string
}

// DoctorProvider references a doctor profile.
func DoctorProvider(id string) Provider { return Provider{Kind: ProviderDoctor, ID: id} }

// RedCrossProvider references a red cross profile.
func RedCrossProvider(id string) Provider { return Provider{Kind: ProviderRedCross, ID: id} }

// Source is the label attached to records in patient-facing listings.
func (p Provider) Source() string {
	if p.Kind == ProviderDoctor {
		return "doctor"
	}
	return "red cross"
}

// Equal reports whether both references point at the same profile.
func (p Provider) Equal(other Provider) bool {
	return p.Kind == other.Kind && p.ID == other.ID
}

// ProviderForRole maps an account role to its provider kind.
func ProviderForRole(role Role) (ProviderKind, bool) {
	switch role {
	case RoleDoctor:
		return ProviderDoctor, true
	case RoleRedCross:
		return ProviderRedCross, true
	}
	return "", false
}

// Provider-owned tables declare their own provider_kind/provider_id columns
// so each one can carry its own composite unique index.
type providerOwned interface {
	GetProvider() Provider
}

var (
	_ providerOwned = (*WorkingHours)(nil)
	_ providerOwned = (*Appointment)(nil)
	_ providerOwned = (*Certificate)(nil)
	_ providerOwned = (*Prescription)(nil)
)

package core

// ErrorPolicy defines how a result fan-out handles handler errors
type ErrorPolicy string

const (
	// ErrorPolicyCancelAll stops delivery to every handler when one fails (default)
	ErrorPolicyCancelAll ErrorPolicy = "cancel-all"

	// ErrorPolicyIsolated keeps delivering to the other handlers when one fails
	ErrorPolicyIsolated ErrorPolicy = "isolated"
)

// Valid reports whether the policy is a known value. The empty policy means cancel-all.
func (p ErrorPolicy) Valid() bool {
	switch p {
	case "", ErrorPolicyCancelAll, ErrorPolicyIsolated:
		return true
	}
	return false
}

package domain

import "strings"

// maxTenantLen and maxNamespaceLen bound the short partition labels
// described in spec §3; they exist to keep index keys small and predictable,
// not to express any business meaning.
const (
	maxTenantLen    = 128
	maxNamespaceLen = 128
	maxKeyLen       = 1024
)

// TenantID is the isolation boundary enforced on every operation.
type TenantID string

// ParseTenantID validates s and returns it as a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	if s == "" || len(s) > maxTenantLen || strings.ContainsAny(s, "\x00\n\r") {
		return "", ErrInvalidTenant
	}
	return TenantID(s), nil
}

// String returns the string form of the TenantID.
func (t TenantID) String() string { return string(t) }

// Namespace is a short partition label within a tenant (e.g. "models", "kb").
type Namespace string

// ParseNamespace validates s and returns it as a Namespace.
func ParseNamespace(s string) (Namespace, error) {
	if s == "" || len(s) > maxNamespaceLen || strings.ContainsAny(s, "\x00\n\r") {
		return "", ErrInvalidNamespace
	}
	return Namespace(s), nil
}

// String returns the string form of the Namespace.
func (n Namespace) String() string { return string(n) }

// ObjectKey is an optional caller-supplied key unique within
// (namespace, tenant_id) among non-DELETED objects.
type ObjectKey string

// ParseObjectKey validates s and returns it as an ObjectKey. An empty string
// is rejected; callers with no key should leave the field absent (nil
// pointer), not pass "".
func ParseObjectKey(s string) (ObjectKey, error) {
	if s == "" || len(s) > maxKeyLen || strings.ContainsAny(s, "\x00\n\r") {
		return "", ErrInvalidKey
	}
	return ObjectKey(s), nil
}

// String returns the string form of the ObjectKey.
func (k ObjectKey) String() string { return string(k) }

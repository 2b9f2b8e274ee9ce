package domain

// StorageClass selects which on-disk root holds a blob. Semantics beyond
// path selection are out of scope for the core.
type StorageClass string

const (
	Hot  StorageClass = "hot"
	Cold StorageClass = "cold"
)

// ParseStorageClass validates s and returns it as a StorageClass.
func ParseStorageClass(s string) (StorageClass, error) {
	switch StorageClass(s) {
	case Hot, Cold:
		return StorageClass(s), nil
	default:
		return "", ErrInvalidStorageClass
	}
}

// String returns the string form of the StorageClass.
func (c StorageClass) String() string { return string(c) }

// Valid reports whether c is a recognized storage class.
func (c StorageClass) Valid() bool {
	return c == Hot || c == Cold
}

// Root returns the configured filesystem root for c, given the hot and cold
// roots from configuration.
func (c StorageClass) Root(hotRoot, coldRoot string) string {
	if c == Cold {
		return coldRoot
	}
	return hotRoot
}

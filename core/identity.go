package core

// Principal is a platform-issued caller identity. It is an opaque, stable
// string: the backend uses it as a map key and never parses or validates
// its internal structure.
type Principal string

func (p Principal) String() string { return string(p) }

// Anonymous is the identity used when the upstream layer supplies none.
const Anonymous Principal = "anonymous"

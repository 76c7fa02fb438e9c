package limits

// bucketKey identifies a token bucket. Session buckets are keyed by session
// ID and IP buckets by address.
type bucketKey struct {
	dim Dimension
	id  string
}

func (k bucketKey) String() string {
	return string(k.dim) + ":" + k.id
}

// windowKey identifies a sliding window owned by one session. name is the
// tool name or category.
type windowKey struct {
	dim     Dimension
	session string
	name    string
}

func (k windowKey) String() string {
	return string(k.dim) + ":" + k.session + ":" + k.name
}

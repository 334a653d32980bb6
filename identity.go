package broadcast

import "weak"

// subscriberRef pairs a comparable identity token with a liveness probe.
// The token is the subscriber's weak.Pointer boxed in an interface: weak
// pointers created from the same pointer compare equal, and boxing one
// does not keep the referent alive, so the token is a stable registry key
// that outlives the subscriber without owning it.
type subscriberRef struct {
	key   any
	alive func() bool
}

func makeRef[S any](subscriber *S) subscriberRef {
	p := weak.Make(subscriber)
	return subscriberRef{
		key:   p,
		alive: func() bool { return p.Value() != nil },
	}
}

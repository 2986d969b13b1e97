package auth

import "sort"

// Privilege is an integer-coded capability attached to a vehicle token.
type Privilege int

// Privileges defined by the vehicle network's permission contract.
const (
	PrivilegeNonLocationData  Privilege = 1
	PrivilegeCommands         Privilege = 2
	PrivilegeCurrentLocation  Privilege = 3
	PrivilegeAllTimeLocation  Privilege = 4
	PrivilegeVINCredential    Privilege = 5
	PrivilegeStreamsSubscribe Privilege = 6
)

// PrivilegeSet is a set of privileges.
type PrivilegeSet map[Privilege]struct{}

// NewPrivilegeSet builds a set from the given privileges.
func NewPrivilegeSet(privileges ...Privilege) PrivilegeSet {
	set := make(PrivilegeSet, len(privileges))
	for _, p := range privileges {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether p is in the set.
func (s PrivilegeSet) Contains(p Privilege) bool {
	_, ok := s[p]
	return ok
}

// ContainsAll reports whether every privilege in other is in the set.
func (s PrivilegeSet) ContainsAll(other PrivilegeSet) bool {
	for p := range other {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// Union returns a new set with the privileges of both sets.
func (s PrivilegeSet) Union(other PrivilegeSet) PrivilegeSet {
	out := make(PrivilegeSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the privileges in ascending order, the shape the token
// exchange endpoint expects.
func (s PrivilegeSet) Sorted() []Privilege {
	out := make([]Privilege, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

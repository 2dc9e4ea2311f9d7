// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "strings"

// HasPermission evaluates node against the rank's resolved effective set.
//
// Evaluation order:
//  1. a literal "*" entry grants everything
//  2. an exact negated entry "-node" denies, beating any grant
//  3. an exact positive entry grants
//  4. each dot-separated prefix of node, least to most specific, is tested
//     with a ".*" suffix ("a.*", then "a.b.*" for "a.b.c"); any hit grants
//
// No match denies. Because negation is checked before the wildcard walk,
// an exact negation always beats wildcard grants regardless of how the set
// happens to be iterated.
func (r *Rank) HasPermission(node string) bool {
	set, ok := r.loadEffective()
	if !ok {
		// Resolution has not run; fall back to the rank's own permissions.
		set = make(map[string]struct{}, len(r.Permissions))
		for _, p := range r.Permissions {
			set[p] = struct{}{}
		}
	}
	return hasPermission(set, node)
}

func hasPermission(set map[string]struct{}, node string) bool {
	if node == "" {
		return false
	}
	if _, ok := set["*"]; ok {
		return true
	}
	if _, ok := set["-"+node]; ok {
		return false
	}
	if _, ok := set[node]; ok {
		return true
	}

	// Wildcard walk: for "a.b.c" test "a.*" then "a.b.*".
	for i := 0; i < len(node); i++ {
		if node[i] != '.' {
			continue
		}
		if _, ok := set[node[:i+1]+"*"]; ok {
			return true
		}
	}
	return false
}

// IsNegation reports whether a permission node is a negation entry.
func IsNegation(node string) bool {
	return strings.HasPrefix(node, "-")
}

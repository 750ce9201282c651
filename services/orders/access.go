// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orders

import (
	"fmt"
	"sort"
	"strings"
)

// AccessMode selects how an AccessPolicy admits callers.
type AccessMode int

const (
	// AccessOpen admits every caller.
	AccessOpen AccessMode = iota

	// AccessAllowlist admits only listed identities.
	AccessAllowlist
)

// AccessPolicy decides which callers may use the order desk.
//
// # Description
//
// The zero value is Open. An Allowlist with no identities admits nobody;
// it never silently turns into Open.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type AccessPolicy struct {
	mode    AccessMode
	allowed map[string]struct{}
}

// OpenAccess returns a policy admitting everyone.
func OpenAccess() AccessPolicy {
	return AccessPolicy{mode: AccessOpen}
}

// AllowlistAccess returns a policy admitting only ids. Blank ids are ignored.
func AllowlistAccess(ids ...string) AccessPolicy {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return AccessPolicy{mode: AccessAllowlist, allowed: allowed}
}

// PolicyFromList maps configured identities to a policy: Open when the list
// is empty, Allowlist otherwise.
func PolicyFromList(ids []string) AccessPolicy {
	if len(ids) == 0 {
		return OpenAccess()
	}
	return AllowlistAccess(ids...)
}

// Mode returns the policy mode.
func (p AccessPolicy) Mode() AccessMode {
	return p.mode
}

// IsOpen reports whether every caller is admitted.
func (p AccessPolicy) IsOpen() bool {
	return p.mode == AccessOpen
}

// Allows reports whether userID is admitted.
func (p AccessPolicy) Allows(userID string) bool {
	if p.mode == AccessOpen {
		return true
	}
	_, ok := p.allowed[userID]
	return ok
}

// String describes the policy for logs.
func (p AccessPolicy) String() string {
	if p.mode == AccessOpen {
		return "open"
	}
	ids := make([]string, 0, len(p.allowed))
	for id := range p.allowed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("allowlist%v", ids)
}

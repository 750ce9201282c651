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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessPolicy_ZeroValueIsOpen(t *testing.T) {
	var p AccessPolicy
	assert.True(t, p.IsOpen())
	assert.True(t, p.Allows("anyone"))
	assert.Equal(t, "open", p.String())
}

func TestAccessPolicy_Allowlist(t *testing.T) {
	p := AllowlistAccess("42", " 7 ", "")

	assert.Equal(t, AccessAllowlist, p.Mode())
	assert.False(t, p.IsOpen())
	assert.True(t, p.Allows("42"))
	assert.True(t, p.Allows("7"))
	assert.False(t, p.Allows("99"))
	assert.False(t, p.Allows(""))
	assert.Equal(t, "allowlist[42 7]", p.String())
}

func TestAccessPolicy_EmptyAllowlistDeniesEveryone(t *testing.T) {
	p := AllowlistAccess()
	assert.False(t, p.IsOpen())
	assert.False(t, p.Allows("42"))
	assert.False(t, p.Allows(""))
}

func TestPolicyFromList(t *testing.T) {
	assert.True(t, PolicyFromList(nil).IsOpen())
	assert.True(t, PolicyFromList([]string{}).IsOpen())

	p := PolicyFromList([]string{"1", "2"})
	assert.Equal(t, AccessAllowlist, p.Mode())
	assert.True(t, p.Allows("2"))
	assert.False(t, p.Allows("3"))
}

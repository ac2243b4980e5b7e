// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_RoundTrip(t *testing.T) {
	t.Parallel()
	for s, typ := range Map {
		assert.Equalf(t, s, typ.String(), "string for %d", typ)
	}
}

func TestMap_Complete(t *testing.T) {
	t.Parallel()
	// every enum value up to the last member must be in Map exactly once
	assert.Len(t, Map, int(GetGlobusAuthInfo)+1)
}

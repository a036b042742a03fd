// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContentDeterministic(t *testing.T) {
	first := IDFromContent("the quick brown fox")
	second := IDFromContent("the quick brown fox")
	assert.Equal(t, first, second)
}

func TestIDFromContentDistinctContent(t *testing.T) {
	a := IDFromContent("alpha")
	b := IDFromContent("beta")
	assert.NotEqual(t, a, b)
}

func TestIDFromContentFormat(t *testing.T) {
	id := IDFromContent("some document text")
	require.True(t, strings.HasPrefix(id, "doc-"))

	hex := strings.TrimPrefix(id, "doc-")
	assert.Len(t, hex, 16)
	for _, r := range hex {
		assert.Contains(t, "0123456789abcdef", string(r))
	}
}

func TestIDFromContentEmptyText(t *testing.T) {
	id := IDFromContent("")
	assert.True(t, strings.HasPrefix(id, "doc-"))
	assert.Len(t, id, 20)
}

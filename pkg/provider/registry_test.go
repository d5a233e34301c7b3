// Copyright 2025 Tom Barlow
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

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) Type() Type        { return TypeSubscription }
func (s *stubProvider) Models() []ModelInfo { return nil }
func (s *stubProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	return &Response{Output: "ok"}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{name: "p1"}))

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.Name())
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{name: "p1"}))
	assert.Error(t, r.Register(&stubProvider{name: "p1"}))
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubProvider{name: ""}))
}

func TestRegistry_FactoryActivateIsIdempotent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.RegisterFactory("p1", func(creds Credentials) (Provider, error) {
		calls++
		return &stubProvider{name: "p1"}, nil
	})

	require.NoError(t, r.Activate("p1", Credentials{}))
	require.NoError(t, r.Activate("p1", Credentials{}))
	assert.Equal(t, 1, calls)
	assert.True(t, r.IsActive("p1"))
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{name: "b"}))
	require.NoError(t, r.Register(&stubProvider{name: "a"}))
	assert.Equal(t, []string{"a", "b"}, r.List())
}

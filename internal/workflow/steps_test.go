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

package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viamin/aidp-sub001/pkg/provider"
)

type scriptedProvider struct {
	name      string
	responses []*provider.Response
	calls     int
}

func (p *scriptedProvider) Name() string             { return p.name }
func (p *scriptedProvider) Type() provider.Type       { return provider.TypeSubscription }
func (p *scriptedProvider) Models() []provider.ModelInfo { return nil }
func (p *scriptedProvider) Execute(context.Context, provider.Request) (*provider.Response, error) {
	resp := p.responses[p.calls]
	if p.calls < len(p.responses)-1 {
		p.calls++
	}
	return resp, nil
}

func newTestManager(t *testing.T, responses ...*provider.Response) *provider.Manager {
	t.Helper()
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(&scriptedProvider{name: "primary", responses: responses}))
	mgr := provider.NewManager(reg, provider.ManagerConfig{CircuitBreakerThreshold: 3, CircuitBreakerTimeout: time.Second}, nil, nil)
	require.NoError(t, mgr.AddProvider("primary", 10, 1, nil, ""))
	_, err := mgr.Start(time.Now())
	require.NoError(t, err)
	return mgr
}

func TestStaticRunner_CompletesStepOnExplicitPhrase(t *testing.T) {
	mgr := newTestManager(t, &provider.Response{Output: "all steps completed successfully"})
	sr := NewStaticRunner([]Step{{Name: "analyze", Prompt: "analyze the repo"}}, mgr, "")

	name, ok := sr.NextStep()
	require.True(t, ok)
	assert.Equal(t, "analyze", name)

	result, err := sr.RunStep(context.Background(), name, nil)
	require.NoError(t, err)
	assert.True(t, result.Completed)

	sr.MarkStepCompleted(name)
	assert.True(t, sr.AllStepsCompleted())
}

func TestStaticRunner_DetectsNeedsFeedback(t *testing.T) {
	mgr := newTestManager(t, &provider.Response{Output: "I need clarification: what is the target directory?"})
	sr := NewStaticRunner([]Step{{Name: "plan", Prompt: "plan the migration"}}, mgr, "")

	result, err := sr.RunStep(context.Background(), "plan", nil)
	require.NoError(t, err)
	assert.True(t, result.NeedsFeedback)
}

func TestStaticRunner_DetectsRateLimited(t *testing.T) {
	mgr := newTestManager(t, &provider.Response{StatusCode: 429, Output: "rate limit exceeded"})
	sr := NewStaticRunner([]Step{{Name: "plan", Prompt: "plan the migration"}}, mgr, "")

	result, err := sr.RunStep(context.Background(), "plan", nil)
	require.NoError(t, err)
	assert.True(t, result.RateLimited)
}

func TestStaticRunner_ProgressReflectsCompletion(t *testing.T) {
	mgr := newTestManager(t, &provider.Response{Output: "ok"})
	sr := NewStaticRunner([]Step{{Name: "a"}, {Name: "b"}}, mgr, "")

	sr.MarkStepCompleted("a")
	p := sr.Progress()
	assert.Equal(t, []string{"a"}, p.CompletedSteps)
	assert.Equal(t, 2, p.TotalSteps)
	assert.False(t, sr.AllStepsCompleted())
}

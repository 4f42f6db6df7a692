// Copyright 2025 Third Eye
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
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeBedrockClient struct {
	respond func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error)
}

func (f *fakeBedrockClient) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	return f.respond(params)
}

func TestBedrockProviderCompleteAnthropicFamily(t *testing.T) {
	fake := &fakeBedrockClient{
		respond: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{
				Body: []byte(`{"content":[{"type":"text","text":"hi from claude"}]}`),
			}, nil
		},
	}
	p := NewBedrockProvider(fake, "us-east-1", "anthropic.claude-v2", 5*time.Second, rate.Inf)

	resp, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi from claude", resp.Text)
}

func TestBedrockProviderCompleteAmazonFamily(t *testing.T) {
	fake := &fakeBedrockClient{
		respond: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{
				Body: []byte(`{"results":[{"outputText":"hi from titan"}]}`),
			}, nil
		},
	}
	p := NewBedrockProvider(fake, "us-east-1", "amazon.titan-text", 5*time.Second, rate.Inf)

	resp, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi from titan", resp.Text)
}

func TestBedrockProviderRejectsUnknownModelFamily(t *testing.T) {
	fake := &fakeBedrockClient{
		respond: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			t.Fatal("should not invoke model for an unsupported family")
			return nil, nil
		},
	}
	p := NewBedrockProvider(fake, "us-east-1", "cohere.command", 5*time.Second, rate.Inf)

	_, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
}

func TestBedrockProviderClassifiesThrottling(t *testing.T) {
	fake := &fakeBedrockClient{
		respond: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return nil, errors.New("ThrottlingException: rate exceeded")
		},
	}
	p := NewBedrockProvider(fake, "us-east-1", "anthropic.claude-v2", 5*time.Second, rate.Inf)

	_, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ClassRateLimited, perr.Class)
	assert.False(t, p.IsHealthy())
}

func TestBedrockProviderHealthyByDefault(t *testing.T) {
	fake := &fakeBedrockClient{
		respond: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"content":[{"type":"text","text":"ok"}]}`)}, nil
		},
	}
	p := NewBedrockProvider(fake, "us-east-1", "anthropic.claude-v2", 5*time.Second, rate.Inf)
	assert.True(t, p.IsHealthy())
}

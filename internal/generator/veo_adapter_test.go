package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/festivid/festivid-api/internal/veo"
)

// mockVeoClient is a simple mock for testing VeoAdapter.
type mockVeoClient struct {
	mock.Mock
}

func (m *mockVeoClient) Submit(ctx context.Context, model string, in veo.SubmitInput) (string, error) {
	args := m.Called(ctx, model, in)
	return args.String(0), args.Error(1)
}

func (m *mockVeoClient) Poll(ctx context.Context, operation string) (veo.OperationResult, error) {
	args := m.Called(ctx, operation)
	return args.Get(0).(veo.OperationResult), args.Error(1)
}

func (m *mockVeoClient) Download(ctx context.Context, uri string) ([]byte, error) {
	args := m.Called(ctx, uri)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestVeoAdapter_Submit(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	req := Request{
		ImageData:     []byte("logo-bytes"),
		ImageMIMEType: "image/png",
		Prompt:        "festive parade",
		Options:       map[string]any{"aspectRatio": "16:9"},
	}

	mockClient.On("Submit", ctx, "veo-3.0-generate-001", mock.MatchedBy(func(in veo.SubmitInput) bool {
		return in.Prompt == "festive parade" &&
			in.ImageBase64 == base64.StdEncoding.EncodeToString([]byte("logo-bytes")) &&
			in.ImageMIMEType == "image/png"
	})).Return("operations/op-1", nil)

	handle, err := adapter.Submit(ctx, "veo-3.0-generate-001", req)
	require.NoError(t, err)
	assert.Equal(t, "operations/op-1", handle)
	mockClient.AssertExpectations(t)
}

func TestVeoAdapter_Submit_ClassifiesOverload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		err            error
		wantOverloaded bool
	}{
		{
			name:           "resource exhausted",
			err:            &veo.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded"},
			wantOverloaded: true,
		},
		{
			name:           "unavailable",
			err:            &veo.APIError{Code: 503, Status: "UNAVAILABLE", Message: "try again later"},
			wantOverloaded: true,
		},
		{
			name:           "overloaded message",
			err:            &veo.APIError{Code: 500, Status: "INTERNAL", Message: "The model is overloaded"},
			wantOverloaded: true,
		},
		{
			name:           "invalid argument",
			err:            &veo.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad image"},
			wantOverloaded: false,
		},
		{
			name:           "plain transport error",
			err:            errors.New("connection reset"),
			wantOverloaded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockVeoClient{}
			adapter := NewVeoAdapter(mockClient)

			mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("", tt.err)

			_, err := adapter.Submit(ctx, "veo-3.0-generate-001", Request{ImageData: []byte("x"), ImageMIMEType: "image/png", Prompt: "p"})
			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tt.wantOverloaded, subErr.Overloaded)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestVeoAdapter_Poll_Running(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	mockClient.On("Poll", ctx, "operations/op-1").
		Return(veo.OperationResult{Done: false, Progress: -1}, nil)

	snap, err := adapter.Poll(ctx, "operations/op-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, snap.State)
	assert.Equal(t, -1, snap.Progress)
	assert.Empty(t, snap.OutputURL)
	assert.Empty(t, snap.Error)
}

func TestVeoAdapter_Poll_SucceededAlwaysHasOutput(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	mockClient.On("Poll", ctx, "operations/op-1").
		Return(veo.OperationResult{Done: true, OutputURI: "https://files.example/v.mp4", Progress: -1}, nil)

	snap, err := adapter.Poll(ctx, "operations/op-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.NotEmpty(t, snap.OutputURL)
}

func TestVeoAdapter_Poll_FailedAlwaysHasMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		result         veo.OperationResult
		wantState      Status
		wantOverloaded bool
	}{
		{
			name:      "failed with message",
			result:    veo.OperationResult{Done: true, Err: &veo.APIError{Code: 13, Status: "INTERNAL", Message: "generation failed"}},
			wantState: StatusFailed,
		},
		{
			name:           "failed overloaded",
			result:         veo.OperationResult{Done: true, Err: &veo.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "capacity"}},
			wantState:      StatusFailed,
			wantOverloaded: true,
		},
		{
			name:      "canceled by provider",
			result:    veo.OperationResult{Done: true, Err: &veo.APIError{Code: 1, Status: "CANCELLED", Message: "operation cancelled"}},
			wantState: StatusCanceled,
		},
		{
			name:      "failed with empty message",
			result:    veo.OperationResult{Done: true, Err: &veo.APIError{Code: 13, Status: "INTERNAL"}},
			wantState: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockVeoClient{}
			adapter := NewVeoAdapter(mockClient)

			mockClient.On("Poll", ctx, "operations/op-1").Return(tt.result, nil)

			snap, err := adapter.Poll(ctx, "operations/op-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, snap.State)
			assert.NotEmpty(t, snap.Error, "terminal failures must always carry a message")
			assert.Equal(t, tt.wantOverloaded, snap.Overloaded)
		})
	}
}

func TestVeoAdapter_Poll_MalformedResponse(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	mockClient.On("Poll", ctx, "operations/op-1").
		Return(veo.OperationResult{Done: true}, veo.ErrNoOutput)

	_, err := adapter.Poll(ctx, "operations/op-1")
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "operations/op-1", malformed.Handle)
}

func TestVeoAdapter_Poll_TransportError(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	mockClient.On("Poll", ctx, "operations/op-1").
		Return(veo.OperationResult{}, errors.New("network down"))

	_, err := adapter.Poll(ctx, "operations/op-1")
	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.False(t, errors.As(err, &malformed), "transport errors are not malformed responses")
}

func TestVeoAdapter_Fetch(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient)

	mockClient.On("Download", ctx, "https://files.example/v.mp4").
		Return([]byte("video"), nil)

	data, err := adapter.Fetch(ctx, "https://files.example/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), data)
	mockClient.AssertExpectations(t)
}

func TestVeoAdapter_CustomOverloadClassifier(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockVeoClient{}
	adapter := NewVeoAdapter(mockClient, WithOverloadClassifier(func(code int, status, message string) bool {
		return status == "CUSTOM_BUSY"
	}))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).
		Return("", &veo.APIError{Code: 400, Status: "CUSTOM_BUSY", Message: "busy"})

	_, err := adapter.Submit(ctx, "veo-3.0-generate-001", Request{ImageData: []byte("x"), ImageMIMEType: "image/png", Prompt: "p"})
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Overloaded)
}

package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/types"
)

func TestRequestRoundTripsOmittingUnusedFields(t *testing.T) {
	req := Request{Tag: VariantCanRun, Project: &types.Project{ID: 7}}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"info"`)
	assert.NotContains(t, string(data), `"uuid"`)

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, VariantCanRun, decoded.Tag)
	require.NotNil(t, decoded.Project)
	assert.Equal(t, 7, decoded.Project.ID)
}

func TestOkResponseRoundTrip(t *testing.T) {
	resp := ok("some-uuid")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Ok)
	assert.Equal(t, "some-uuid", *decoded.Ok)
	assert.Nil(t, decoded.Err)
}

func TestErrResponseRoundTrip(t *testing.T) {
	resp := errResponse(ErrLogic, "NameAlreadyExists")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Ok)
	require.NotNil(t, decoded.Err)
	assert.Equal(t, ErrLogic, decoded.Err.Kind)
	assert.Equal(t, "NameAlreadyExists", decoded.Err.Message)
}

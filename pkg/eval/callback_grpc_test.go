// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/declstack/declstack/pkg/value"
)

// GRPCCallback's RPC methods need a live *grpc.ClientConn and are exercised
// end to end by the orchestrator this host dials in practice; these tests
// cover the wire envelope helpers in isolation instead.

func TestEncodeDecodeValueMap_RoundTrips(t *testing.T) {
	in := map[string]value.Value{
		"region": value.String("us-west-2"),
		"count":  value.Number(3),
		"ready":  value.Bool(true),
	}
	encoded := encodeValueMap(in)
	out := decodeValueMap(encoded)

	require.Len(t, out, 3)
	s, ok := out["region"].AsString()
	require.True(t, ok)
	assert.Equal(t, "us-west-2", s)
}

func TestDecodeValueMap_NonStructValueYieldsEmptyMap(t *testing.T) {
	out := decodeValueMap(nil)
	assert.Empty(t, out)
}

func TestEncodeResourceOptions_CarriesScalarAndListFields(t *testing.T) {
	opts := ResolvedResourceOptions{
		Protect:   true,
		DependsOn: []string{"urn:a", "urn:b"},
		Providers: map[string]string{"aws": "urn:provider:aws"},
	}
	encoded := encodeResourceOptions(opts)
	s := encoded.GetStructValue()
	require.NotNil(t, s)

	assert.True(t, s.Fields["protect"].GetBoolValue())

	deps := s.Fields["dependsOn"].GetListValue()
	require.NotNil(t, deps)
	require.Len(t, deps.Values, 2)
	assert.Equal(t, "urn:a", deps.Values[0].GetStringValue())

	providers := s.Fields["providers"].GetStructValue()
	require.NotNil(t, providers)
	assert.Equal(t, "urn:provider:aws", providers.Fields["aws"].GetStringValue())
}

func TestDecodeRegisterResponse_ReadsStablesList(t *testing.T) {
	resp := structOf(map[string]*structpb.Value{
		"urn": structpb.NewStringValue("urn:pulumi:stack::proj::cloud:storage:Bucket::bucket"),
		"id":  structpb.NewStringValue("bucket-id"),
		"stables": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewStringValue("id"),
		}}),
	})
	out := decodeRegisterResponse(resp)
	assert.Equal(t, "bucket-id", out.ID)
	assert.Equal(t, []string{"id"}, out.Stables)
}

package wire

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/masp"
)

func cborRoundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	b, err := cbor.Marshal(v)
	require.NoError(t, err)
	var got T
	require.NoError(t, cbor.Unmarshal(b, &got))
	return got
}

func TestClientMsgRoundTrip(t *testing.T) {
	msgs := []ClientMsg{
		{RegisterKey: &RegisterKeyMsg{Nonce: 7, Pk: [32]byte{1, 2, 3}}},
		{RequestReport: &RequestReportMsg{UserData: [64]byte{9}}},
		{RATLSAck: &AckType{Fail: &struct{}{}}},
		{RequestUUID: &struct{}{}},
		{RequestIndices: &RequestIndicesMsg{KeyHash: "abc123"}},
	}
	for _, m := range msgs {
		require.Equal(t, m, cborRoundTrip(t, m))
	}
}

func TestServerMsgRoundTrip(t *testing.T) {
	owner := "deadbeef"
	msgs := []ServerMsg{
		{RATLS: &RATLSMsg{Report: []byte{1, 2, 3}}},
		{Error: strPtr("bad request")},
		{KeyRegSuccess: &struct{}{}},
		{UUID: strPtr("host-uuid")},
		{IndicesResponse: &masp.EncryptedResponse{Owner: owner, Height: 4}},
	}
	for _, m := range msgs {
		require.Equal(t, m, cborRoundTrip(t, m))
	}
}

func TestMsgFromHostRoundTrip(t *testing.T) {
	msgs := []MsgFromHost{
		{RegisterKey: &RegisterKeyMsg{Nonce: 1, Pk: [32]byte{4}}},
		{RequestReport: &RequestReportMsg{UserData: [64]byte{5}}},
		{RATLSAck: &AckType{Success: &TlsCiphertext{Payload: []byte{1}, Nonce: [masp.NonceLen]byte{2}}}},
		{RequiredBlocks: &struct{}{}},
		{RequestedFlags: &RequestedFlagsMsg{
			SyncedTo: 10,
			Flags: []FlagEntry{
				{Index: masp.Index{Height: 11, Tx: 0}, Flag: []byte{1, 2}},
				{Index: masp.Index{Height: 11, Tx: 1}},
			},
		}},
	}
	for _, m := range msgs {
		require.Equal(t, m, cborRoundTrip(t, m))
	}
}

func TestMsgToHostRoundTrip(t *testing.T) {
	msgs := []MsgToHost{
		{RATLS: &RATLSMsg{Report: []byte{9, 9}}},
		{Error: strPtr("internal")},
		{ErrorForClient: strPtr("rejected")},
		{KeyRegSuccess: &struct{}{}},
		{Report: []byte{1, 2, 3, 4}},
		{BlockRequests: []uint64{1, 2, 3}},
		{FmdResults: []masp.EncryptedResponse{{Owner: "abc", Height: 2}}},
	}
	for _, m := range msgs {
		require.Equal(t, m, cborRoundTrip(t, m))
	}
}

// TestOneofOmitsUnsetVariants documents the oneof contract: a message
// with one variant set encodes to a map with exactly one key, named after
// that variant.
func TestOneofOmitsUnsetVariants(t *testing.T) {
	m := ClientMsg{RequestUUID: &struct{}{}}
	b, err := cbor.Marshal(m)
	require.NoError(t, err)

	var asMap map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(b, &asMap))
	require.Len(t, asMap, 1)
	_, ok := asMap["RequestUUID"]
	require.True(t, ok)
}

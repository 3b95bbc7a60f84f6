package distclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContentsResponseDecodesArtifacts(t *testing.T) {
	resp := contentsResponse{
		CommitSHA: "abc123",
		Namespaces: []namespaceArtifacts{
			{
				Name: "n1",
				Flags: map[string][]byte{
					"enabled": []byte(`{"type":"bool","default":{"kind":"bool","bool":true}}`),
				},
			},
		},
	}

	namespaces, err := decodeContentsResponse(resp)
	require.NoError(t, err)
	require.Len(t, namespaces, 1)
	assert.Equal(t, "n1", namespaces[0].Name)
	require.Len(t, namespaces[0].Flags, 1)
	assert.Equal(t, "enabled", namespaces[0].Flags[0].Flag.Name)
	assert.NotEmpty(t, namespaces[0].Flags[0].ContentHash)
}

func TestDecodeContentsResponsePropagatesArtifactError(t *testing.T) {
	resp := contentsResponse{
		Namespaces: []namespaceArtifacts{
			{Name: "n1", Flags: map[string][]byte{"bad": []byte(`not json`)}},
		},
	}

	_, err := decodeContentsResponse(resp)
	assert.Error(t, err)
}

func TestDecodeContentsResponseEmpty(t *testing.T) {
	namespaces, err := decodeContentsResponse(contentsResponse{CommitSHA: "c0"})
	require.NoError(t, err)
	assert.Empty(t, namespaces)
}

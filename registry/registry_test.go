package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	r := New(&Host{Hostname: "parent", GUID: "0e1b2c3d-4f50-6172-8394-a5b6c7d8e9f0"})
	r.Add(&Host{
		Hostname: "child-1",
		GUID:     "aabbccdd-eeff-0011-2233-445566778899",
		NodeID:   "node-abc",
	})

	return r
}

func TestLookupByHostname(t *testing.T) {
	r := testRegistry()
	require.NotNil(t, r.Lookup("child-1", false))
	require.Nil(t, r.Lookup("child-2", false))
}

func TestLookupByGUID(t *testing.T) {
	r := testRegistry()
	h := r.Lookup("aabbccdd-eeff-0011-2233-445566778899", false)
	require.NotNil(t, h)
	require.Equal(t, "child-1", h.Hostname)
}

func TestLookupGUIDUppercaseRetry(t *testing.T) {
	r := testRegistry()
	h := r.Lookup("aabbccdd-eeff-0011-2233-445566778899", false)
	require.NotNil(t, h)

	viaUpper := r.Lookup("AABBCCDD-EEFF-0011-2233-445566778899", false)
	require.Equal(t, h, viaUpper)

	viaMixed := r.Lookup("AabbCcdd-eeff-0011-2233-445566778899", true)
	require.Equal(t, h, viaMixed)
}

func TestLookupByNodeID(t *testing.T) {
	r := testRegistry()
	require.NotNil(t, r.Lookup("node-abc", true))
	// the node id also resolves without the /node prefix, just later
	require.NotNil(t, r.Lookup("node-abc", false))
}

func TestRoot(t *testing.T) {
	r := testRegistry()
	require.Equal(t, "parent", r.Root().Hostname)
}

package containeradapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/beacond/pkg/selfaddr"
	"github.com/cuemby/beacond/pkg/types"
)

func TestNormalizeSocket(t *testing.T) {
	require.Equal(t, "/run/containerd/containerd.sock", normalizeSocket("unix:///run/containerd/containerd.sock"))
	require.Equal(t, "/run/containerd/containerd.sock", normalizeSocket("/run/containerd/containerd.sock"))
}

func TestNetworkLabel(t *testing.T) {
	require.Equal(t, "host", networkLabel(true))
	require.Equal(t, "bridge", networkLabel(false))
}

func TestSourceID(t *testing.T) {
	require.Equal(t, "container:abc123", sourceID("abc123"))
}

func TestNilAdapterIsNoop(t *testing.T) {
	var a *Adapter
	require.NoError(t, a.Close())

	workloads, err := a.Enumerate(nil)
	require.NoError(t, err)
	require.Nil(t, workloads)
}

func TestNilAdapterFindSelfIsNoop(t *testing.T) {
	var a *Adapter
	ws, ok, err := a.FindSelf(nil, selfaddr.Addr{})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, types.Workload{}, ws)
}

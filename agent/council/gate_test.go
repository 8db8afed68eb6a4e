package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSearchGate_ApproveFlow(t *testing.T) {
	g := NewSearchGate()
	g, auto, err := g.Propose(SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.False(t, auto)
	assert.True(t, g.IsPending())

	_, _, err = g.Propose(SearchRequest{Query: "again"})
	assert.ErrorIs(t, err, ErrSearchInFlight)

	g, err = g.Approve()
	require.NoError(t, err)
	assert.Equal(t, GateApproved, g.State)
	assert.Equal(t, 1, g.Approvals)

	g = g.BeginSearch()
	assert.Equal(t, GateSearching, g.State)
	g = g.Resolve(true)
	assert.Equal(t, GateContinuedWithResults, g.State)
	assert.Nil(t, g.Pending)
}

func TestSearchGate_DenyFlow(t *testing.T) {
	g, _, _ := NewSearchGate().Propose(SearchRequest{Query: "q"})
	g, err := g.Deny()
	require.NoError(t, err)
	assert.Equal(t, GateDenied, g.State)
	assert.Equal(t, 0, g.Approvals)

	g = g.Resolve(true)
	assert.Equal(t, GateContinuedWithoutResults, g.State)
	assert.Nil(t, g.Pending)

	_, err = g.Deny()
	assert.ErrorIs(t, err, ErrNoPendingSearch)
}

func TestSearchGate_AutoApproveThreshold(t *testing.T) {
	g := NewSearchGate()
	for i := 0; i < AutoApproveThreshold; i++ {
		_, err := g.SetAutoApprove(true)
		assert.ErrorIs(t, err, ErrAutoApproveLocked, "approval %d", i)

		g, _, _ = g.Propose(SearchRequest{Query: "q"})
		g, _ = g.Approve()
		g = g.BeginSearch().Resolve(false)
	}
	require.True(t, g.CanAutoApprove())

	g, err := g.SetAutoApprove(true)
	require.NoError(t, err)

	g, auto, err := g.Propose(SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.True(t, auto)
	assert.Equal(t, GateSearching, g.State)
	assert.False(t, g.IsPending())

	g, err = g.SetAutoApprove(false)
	require.NoError(t, err)
	assert.False(t, g.AutoApprove)
}

func TestSearchGate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewSearchGate()
		prevApprovals := 0
		ops := rapid.SliceOfN(rapid.IntRange(0, 5), 1, 40).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				g, _, _ = g.Propose(SearchRequest{Query: "q"})
			case 1:
				g, _ = g.Approve()
			case 2:
				g, _ = g.Deny()
			case 3:
				g = g.BeginSearch()
			case 4:
				g = g.Resolve(rapid.Bool().Draw(t, "results"))
			case 5:
				g, _ = g.SetAutoApprove(rapid.Bool().Draw(t, "auto"))
			}

			if g.Approvals < prevApprovals {
				t.Fatalf("approvals decreased: %d -> %d", prevApprovals, g.Approvals)
			}
			prevApprovals = g.Approvals
			if g.AutoApprove && g.Approvals < AutoApproveThreshold {
				t.Fatalf("auto-approve on with %d approvals", g.Approvals)
			}
			if g.busy() != (g.Pending != nil) {
				t.Fatalf("state %s with pending=%v", g.State, g.Pending != nil)
			}
		}
	})
}

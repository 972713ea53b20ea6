package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPublicLinkLookups(t *testing.T) {
	ownerID := createTestUserForNodes(t, "link_owner")
	node := createTestNode(t, CreateNodeParams{ID: "link_node", OwnerID: ownerID, Name: "report.pdf", NodeType: "file"})

	link, err := testStore.CreatePublicLink(context.Background(), CreatePublicLinkParams{
		ID:      uuid.New(),
		NodeID:  node.ID,
		OwnerID: ownerID,
		Token:   "deadbeefdeadbeefdeadbeefdeadbeef",
	})
	require.NoError(t, err)
	require.Equal(t, node.ID, link.NodeID)

	byNode, err := testStore.GetPublicLinkByNode(context.Background(), node.ID)
	require.NoError(t, err)
	require.NotNil(t, byNode)
	require.Equal(t, link.Token, byNode.Token)

	byToken, err := testStore.GetPublicLinkByToken(context.Background(), link.Token)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	require.Equal(t, link.ID, byToken.ID)

	missing, err := testStore.GetPublicLinkByToken(context.Background(), "no_such_token")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestGetPublicLinkByNodeOldestWins(t *testing.T) {
	ownerID := createTestUserForNodes(t, "link_owner_oldest")
	node := createTestNode(t, CreateNodeParams{ID: "link_node_oldest", OwnerID: ownerID, Name: "a.txt", NodeType: "file"})

	first, err := testStore.CreatePublicLink(context.Background(), CreatePublicLinkParams{
		ID: uuid.New(), NodeID: node.ID, OwnerID: ownerID, Token: "token_first_0000000000000000",
	})
	require.NoError(t, err)

	_, err = testStore.pool.Exec(context.Background(),
		`UPDATE public_links SET created_at = created_at - interval '1 hour' WHERE token = $1`, first.Token)
	require.NoError(t, err)

	_, err = testStore.CreatePublicLink(context.Background(), CreatePublicLinkParams{
		ID: uuid.New(), NodeID: node.ID, OwnerID: ownerID, Token: "token_second_000000000000000",
	})
	require.NoError(t, err)

	canonical, err := testStore.GetPublicLinkByNode(context.Background(), node.ID)
	require.NoError(t, err)
	require.Equal(t, first.Token, canonical.Token, "the oldest link row is canonical")
}

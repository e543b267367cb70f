package kademlia

import "context"

// RefreshStaleBuckets runs one pass of the refresh task: for every stale
// bucket, pick a random-ID target in that bucket's range and run FindNode
// against it, then mark the bucket refreshed.
func (n *Node) RefreshStaleBuckets(ctx context.Context) error {
	for _, idx := range n.table.GetStaleBuckets() {
		target, _, err := n.table.GetNodeForRefresh(idx)
		if err != nil {
			return err
		}
		if _, err := n.FindNode(ctx, target); err != nil {
			return err
		}
		n.table.MarkRefreshed(idx)
	}
	return nil
}

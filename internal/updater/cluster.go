package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/beyonddemise/couchdb-idp-updater/internal/couchdb"
)

// UpdateCluster enumerates a server's cluster members and fans UpdateNode
// across them. All nodes are awaited; one node's failure does not stop its
// siblings. The returned error aggregates the per-node failures.
func (d *Distributor) UpdateCluster(ctx context.Context, client *couchdb.Client, desired map[string]string, counter *RestartCounter) error {
	nodes, err := client.Membership(ctx)
	if err != nil {
		return err
	}

	if len(nodes) == 0 {
		d.logger.Info("cluster reports no members", "server", client.BaseURL())
		return nil
	}

	var mu sync.Mutex
	var nodeErrs []error

	var g errgroup.Group
	for _, node := range nodes {
		g.Go(func() error {
			if err := d.UpdateNode(ctx, client, node, desired, counter); err != nil {
				d.logger.Warn("node update failed",
					"server", client.BaseURL(), "node", node, "error", err)
				mu.Lock()
				nodeErrs = append(nodeErrs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	// Join semantics: every node is awaited regardless of failures
	_ = g.Wait()

	if len(nodeErrs) > 0 {
		return fmt.Errorf("cluster %s: %w", client.BaseURL(), errors.Join(nodeErrs...))
	}
	return nil
}

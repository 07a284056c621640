package imports

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

type nameKey struct {
	role   enums.Role
	name   string
	parent uuid.UUID
}

// nameResolver caches successful name lookups for the lifetime of one batch.
// Nodes are immutable, so a cached hit can never go stale mid-import.
type nameResolver struct {
	directory hierarchy.Directory
	cache     map[nameKey]models.HierarchyNode
}

func newNameResolver(directory hierarchy.Directory) *nameResolver {
	return &nameResolver{directory: directory, cache: map[nameKey]models.HierarchyNode{}}
}

// resolve finds the MitraCabang by name, the Cabang by name under it and the
// Link by name under that Cabang.
func (r *nameResolver) resolve(ctx context.Context, row Row) (*hierarchy.Chain, error) {
	partner, err := r.lookup(ctx, enums.RoleMitraCabang, row.PartnerName, nil)
	if err != nil {
		return nil, err
	}
	branch, err := r.lookup(ctx, enums.RoleCabang, row.BranchName, &partner.ID)
	if err != nil {
		return nil, err
	}
	seller, err := r.lookup(ctx, enums.RoleLink, row.SellerName, &branch.ID)
	if err != nil {
		return nil, err
	}
	return &hierarchy.Chain{Partner: partner, Branch: branch, Seller: seller}, nil
}

func (r *nameResolver) lookup(ctx context.Context, role enums.Role, name string, parentID *uuid.UUID) (models.HierarchyNode, error) {
	name = strings.TrimSpace(name)
	key := nameKey{role: role, name: strings.ToLower(name)}
	if parentID != nil {
		key.parent = *parentID
	}
	if node, ok := r.cache[key]; ok {
		return node, nil
	}
	node, err := r.directory.ResolveName(ctx, role, name, parentID)
	if err != nil {
		return models.HierarchyNode{}, err
	}
	r.cache[key] = *node
	return *node, nil
}

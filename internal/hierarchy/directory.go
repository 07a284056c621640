package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
)

// Directory resolves nodes of the reseller network. Nodes never move, so
// lookups are safe to run outside the caller's transaction.
type Directory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error)
	LookupMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.HierarchyNode, error)
	ResolveName(ctx context.Context, role enums.Role, name string, parentID *uuid.UUID) (*models.HierarchyNode, error)
	ListByRoles(ctx context.Context, roles ...enums.Role) ([]models.HierarchyNode, error)
	ValidateChain(ctx context.Context, partnerID, branchID, sellerID uuid.UUID) (*Chain, error)
	Register(ctx context.Context, input RegisterInput) (*models.HierarchyNode, error)
}

// Chain is a validated MitraCabang → Cabang → Link path.
type Chain struct {
	Partner models.HierarchyNode
	Branch  models.HierarchyNode
	Seller  models.HierarchyNode
}

// RegisterInput describes a node to add under an existing parent.
type RegisterInput struct {
	ID       uuid.UUID
	Name     string
	Role     enums.Role
	ParentID *uuid.UUID
}

type directory struct {
	repo Repository
}

// NewDirectory wires the directory to its repository.
func NewDirectory(repo Repository) (Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("hierarchy repository required")
	}
	return &directory{repo: repo}, nil
}

func (d *directory) Lookup(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "node id required")
	}
	node, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("node %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load hierarchy node")
	}
	return node, nil
}

func (d *directory) LookupMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.HierarchyNode, error) {
	nodes, err := d.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load hierarchy nodes")
	}
	out := make(map[uuid.UUID]models.HierarchyNode, len(nodes))
	for _, node := range nodes {
		out[node.ID] = node
	}
	return out, nil
}

func (d *directory) ResolveName(ctx context.Context, role enums.Role, name string, parentID *uuid.UUID) (*models.HierarchyNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s name required", role))
	}
	nodes, err := d.repo.FindByName(ctx, role, name, parentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve hierarchy name")
	}
	switch len(nodes) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %q not found", role, name))
	case 1:
		return &nodes[0], nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s %q is ambiguous", role, name))
	}
}

func (d *directory) ListByRoles(ctx context.Context, roles ...enums.Role) ([]models.HierarchyNode, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	nodes, err := d.repo.ListByRoles(ctx, roles)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list hierarchy nodes")
	}
	return nodes, nil
}

func (d *directory) ValidateChain(ctx context.Context, partnerID, branchID, sellerID uuid.UUID) (*Chain, error) {
	partner, err := d.Lookup(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	branch, err := d.Lookup(ctx, branchID)
	if err != nil {
		return nil, err
	}
	seller, err := d.Lookup(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	if partner.Role != enums.RoleMitraCabang {
		return nil, mismatch("partner %s has role %s, want %s", partner.ID, partner.Role, enums.RoleMitraCabang)
	}
	if branch.Role != enums.RoleCabang {
		return nil, mismatch("branch %s has role %s, want %s", branch.ID, branch.Role, enums.RoleCabang)
	}
	if branch.ParentID == nil || *branch.ParentID != partner.ID {
		return nil, mismatch("branch %s does not belong to partner %s", branch.ID, partner.ID)
	}
	if seller.Role != enums.RoleLink {
		return nil, mismatch("seller %s has role %s, want %s", seller.ID, seller.Role, enums.RoleLink)
	}
	if seller.ParentID == nil || *seller.ParentID != branch.ID {
		return nil, mismatch("seller %s does not belong to branch %s", seller.ID, branch.ID)
	}

	return &Chain{Partner: *partner, Branch: *branch, Seller: *seller}, nil
}

func (d *directory) Register(ctx context.Context, input RegisterInput) (*models.HierarchyNode, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", input.Role))
	}

	wantParent, needsParent := input.Role.ExpectedParent()
	switch {
	case needsParent && input.ParentID == nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s requires a %s parent", input.Role, wantParent))
	case needsParent:
		parent, err := d.Lookup(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Role != wantParent {
			return nil, mismatch("parent %s has role %s, want %s", parent.ID, parent.Role, wantParent)
		}
	case input.ParentID != nil && input.Role == enums.RoleMitraCabang:
		// partners may report to an Owner/Admin account; any staff parent is accepted.
		parent, err := d.Lookup(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if !parent.Role.IsStaff() {
			return nil, mismatch("partner parent %s has role %s", parent.ID, parent.Role)
		}
	}

	node := &models.HierarchyNode{
		ID:       input.ID,
		Name:     name,
		Role:     input.Role,
		ParentID: input.ParentID,
	}
	if err := d.repo.Create(ctx, node); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeAlreadyExists, err, "node already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create hierarchy node")
	}
	return node, nil
}

func mismatch(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeHierarchyMismatch, fmt.Sprintf(format, args...))
}

package auth

import (
	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
)

// Action is an operation subject to authorization
type Action string

const (
	ActionCreateComplaint Action = "complaint:create"
	ActionViewComplaint   Action = "complaint:view"
	ActionExpressInterest Action = "complaint:interest"
	ActionAccept          Action = "complaint:accept"
	ActionAssignWorkers   Action = "complaint:assign_workers"
	ActionUpdateStatus    Action = "complaint:update_status"
	ActionRate            Action = "complaint:rate"
	ActionChat            Action = "complaint:chat"
	ActionApproveWorker   Action = "user:approve_worker"
	ActionApproveAdmin    Action = "user:approve_admin"
	ActionUnapproveWorker Action = "user:unapprove_worker"
	ActionAuditRatings    Action = "rating:audit"
)

// Ownership is the relation a role must hold to the resource
type Ownership int

const (
	// Any means the role alone is sufficient
	Any Ownership = iota
	// Owner requires the caller to be the complaint's citizen
	Owner
	// Assignee requires the caller to be an assigned worker
	Assignee
)

// Relation describes the caller's relation to the resource being acted on
type Relation struct {
	IsOwner    bool
	IsAssignee bool
}

// Policy maps an action to the roles allowed to perform it and the relation each needs.
var Policy = map[Action]map[models.Role]Ownership{
	ActionCreateComplaint: {models.RoleCitizen: Any},
	ActionViewComplaint: {
		models.RoleCitizen:   Owner,
		models.RoleWorker:    Any,
		models.RoleAdmin:     Any,
		models.RoleSuperuser: Any,
	},
	ActionExpressInterest: {models.RoleWorker: Any},
	ActionAccept:          {models.RoleWorker: Any},
	ActionAssignWorkers:   {models.RoleCitizen: Owner},
	ActionUpdateStatus: {
		models.RoleWorker:    Assignee,
		models.RoleAdmin:     Any,
		models.RoleSuperuser: Any,
	},
	ActionRate: {models.RoleCitizen: Owner},
	ActionChat: {
		models.RoleCitizen:   Owner,
		models.RoleWorker:    Any,
		models.RoleAdmin:     Any,
		models.RoleSuperuser: Any,
	},
	ActionApproveWorker:   {models.RoleAdmin: Any},
	ActionApproveAdmin:    {models.RoleSuperuser: Any},
	ActionUnapproveWorker: {models.RoleAdmin: Any},
	ActionAuditRatings: {
		models.RoleAdmin:     Any,
		models.RoleSuperuser: Any,
	},
}

// RequiresApproval reports whether accounts of role r must be approved before acting
func RequiresApproval(r models.Role) bool {
	return r == models.RoleWorker || r == models.RoleAdmin
}

// Authorize returns a Forbidden error unless p may perform action given rel
func Authorize(action Action, p Principal, rel Relation) error {
	if RequiresApproval(p.Role) && !p.IsApproved {
		return apperrors.Forbidden("account not approved yet")
	}

	roles, ok := Policy[action]
	if !ok {
		return apperrors.Forbidden("action %s is not permitted", action)
	}
	need, ok := roles[p.Role]
	if !ok {
		return apperrors.Forbidden("role %s may not perform %s", p.Role, action)
	}

	switch need {
	case Owner:
		if !rel.IsOwner {
			return apperrors.Forbidden("only the owning citizen may perform %s", action)
		}
	case Assignee:
		if !rel.IsAssignee {
			return apperrors.Forbidden("only an assigned worker may perform %s", action)
		}
	}
	return nil
}

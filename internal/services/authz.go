package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/models"
	"gorm.io/gorm"
)

// Denial reasons surfaced to callers for diagnostics.
const (
	ReasonNotAMember              = "not-a-member"
	ReasonInsufficientPermissions = "insufficient-permissions"
)

// Decision is the gate's verdict. Reason names the rule that allowed the
// action, or the diagnostic denial reason.
type Decision struct {
	Allowed bool
	Reason  string
}

// AuthzService decides whether a caller may delete a file or folder. It only
// reads membership facts; it never mutates them.
type AuthzService struct {
	DB *gorm.DB
}

func NewAuthzService(db *gorm.DB) *AuthzService {
	return &AuthzService{DB: db}
}

// CanDelete applies the decision order: resource uploader/creator, project
// owner, elevated membership role, explicit delete capability. It must run
// before any destructive step.
func (a *AuthzService) CanDelete(ctx context.Context, callerID, projectID, resourceOwnerID uuid.UUID) Decision {
	if callerID == resourceOwnerID {
		return Decision{Allowed: true, Reason: "uploader"}
	}

	var project models.Project
	if err := a.DB.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		return Decision{Reason: ReasonNotAMember}
	}
	if project.OwnerID == callerID {
		return Decision{Allowed: true, Reason: "project-owner"}
	}

	var membership models.Membership
	err := a.DB.WithContext(ctx).
		First(&membership, "project_id = ? AND user_id = ?", projectID, callerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{Reason: ReasonNotAMember}
		}
		return Decision{Reason: ReasonNotAMember}
	}

	if isElevatedRole(membership.Role) {
		return Decision{Allowed: true, Reason: "elevated-role"}
	}
	if Capabilities(membership.Permissions).Has("delete") {
		return Decision{Allowed: true, Reason: "delete-capability"}
	}

	return Decision{Reason: ReasonInsufficientPermissions}
}

func isElevatedRole(role models.MembershipRole) bool {
	switch strings.ToLower(string(role)) {
	case "owner", "admin":
		return true
	default:
		return false
	}
}

// CapabilitySet is the normalized form of a membership's permission grant.
// Tokens are lower-cased.
type CapabilitySet map[string]bool

func (s CapabilitySet) Has(capability string) bool {
	return s[strings.ToLower(capability)]
}

// Capabilities normalizes the heterogeneous permission encodings found in
// membership rows into one capability set: a JSON array of tokens, a JSON
// object with boolean fields, a JSON string, or a bare comma/space-separated
// string. Shape sniffing happens here, once, so the gate itself never
// branches on encoding.
func Capabilities(raw string) CapabilitySet {
	caps := CapabilitySet{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return caps
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		caps.addTokens(raw)
		return caps
	}
	caps.collect(decoded)
	return caps
}

func (s CapabilitySet) collect(value interface{}) {
	switch v := value.(type) {
	case string:
		s.addTokens(v)
	case []interface{}:
		for _, item := range v {
			s.collect(item)
		}
	case map[string]interface{}:
		for key, item := range v {
			if flag, ok := item.(bool); ok {
				if flag {
					s.addTokens(key)
				}
				continue
			}
			s.collect(item)
		}
	}
}

func (s CapabilitySet) addTokens(value string) {
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	for _, token := range tokens {
		if token != "" {
			s[strings.ToLower(token)] = true
		}
	}
}

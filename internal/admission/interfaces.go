// Package admission defines service interfaces.
package admission

import "time"

// AdmissionService evaluates admission requests.
type AdmissionService interface {
	Check(req *CheckRequest) (*Decision, error)
	CheckBatch(reqs []*CheckRequest) ([]*Decision, error)
}

// AdminService manages principals and serves operator reporting.
type AdminService interface {
	CreatePrincipal(req *CreatePrincipalRequest) (*Principal, error)
	GetPrincipal(id string) (*Principal, error)
	DisablePrincipal(id string) error
	ChangeTier(id string, tier Tier) (*Principal, error)
	Usage(id string) (*UsageSnapshot, error)
	ViolationStats(window time.Duration) ViolationStats
}

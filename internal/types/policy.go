package types

import "fmt"

// PolicyKind tags the four storage disclosure classes a piece of content can
// be stored under. Each governs encryption, placement, and access.
type PolicyKind int

const (
	// PolicyPrivateMax is local-only storage: content never touches the
	// overlay.
	PolicyPrivateMax PolicyKind = iota
	// PolicyPrivateScoped is DHT-stored and namespace-keyed.
	PolicyPrivateScoped
	// PolicyGroupScoped is erasure-coded across a group's members.
	PolicyGroupScoped
	// PolicyPublicMarkdown is convergent, world-readable, globally deduped.
	PolicyPublicMarkdown
)

func (p PolicyKind) String() string {
	switch p {
	case PolicyPrivateMax:
		return "PrivateMax"
	case PolicyPrivateScoped:
		return "PrivateScoped"
	case PolicyGroupScoped:
		return "GroupScoped"
	case PolicyPublicMarkdown:
		return "PublicMarkdown"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(p))
	}
}

// Policy is the tagged variant described in spec §3. Only the field relevant
// to Kind is populated; the rest are zero values.
type Policy struct {
	Kind      PolicyKind
	Namespace string // PrivateScoped
	GroupID   string // GroupScoped
}

func PrivateMax() Policy { return Policy{Kind: PolicyPrivateMax} }

func PrivateScoped(namespace string) Policy {
	return Policy{Kind: PolicyPrivateScoped, Namespace: namespace}
}

func GroupScoped(groupID string) Policy {
	return Policy{Kind: PolicyGroupScoped, GroupID: groupID}
}

func PublicMarkdown() Policy { return Policy{Kind: PolicyPublicMarkdown} }

// Equal compares two policies for the "distinct StorageAddress" rule: two
// logically identical blobs stored under different policies are distinct
// addresses, so policy equality must be exact, including scoping fields.
func (p Policy) Equal(other Policy) bool {
	return p.Kind == other.Kind && p.Namespace == other.Namespace && p.GroupID == other.GroupID
}

// MaxContentBytes returns the per-policy size cap enforced at store time.
// PrivateMax caps at 100 MiB per spec §4.3; other policies are bounded only
// by the chunking/erasure pipeline, so we return a generous ceiling that
// still catches pathological inputs.
func (p Policy) MaxContentBytes() int64 {
	switch p.Kind {
	case PolicyPrivateMax:
		return 100 * 1024 * 1024
	default:
		return 1024 * 1024 * 1024 // 1 GiB ceiling for DHT/group/public content
	}
}

// StorageAddress is (ContentId, Policy). Addressing by the pair — not by
// content id alone — is what lets two policies of the same bytes coexist.
type StorageAddress struct {
	ContentID ContentID
	Policy    Policy
}

func (a StorageAddress) String() string {
	return fmt.Sprintf("%s:%s", a.Policy, a.ContentID)
}

func (a StorageAddress) Equal(other StorageAddress) bool {
	return a.ContentID == other.ContentID && a.Policy.Equal(other.Policy)
}

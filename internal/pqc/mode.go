// Package pqc implements the post-quantum crypto module: ML-KEM-768
// keypair management, AEAD wrap, and per-policy key derivation (spec §4.4).
package pqc

import (
	"fmt"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// Mode mirrors types.PolicyKind 1:1 — every storage policy has exactly one
// crypto mode, never a choice at encrypt time.
type Mode int

const (
	ModePrivateMax Mode = iota
	ModePrivateScoped
	ModeGroupScoped
	ModePublicMarkdown
)

func ModeFromPolicy(p types.Policy) Mode {
	switch p.Kind {
	case types.PolicyPrivateMax:
		return ModePrivateMax
	case types.PolicyPrivateScoped:
		return ModePrivateScoped
	case types.PolicyGroupScoped:
		return ModeGroupScoped
	case types.PolicyPublicMarkdown:
		return ModePublicMarkdown
	default:
		return ModePrivateMax
	}
}

func (m Mode) String() string {
	switch m {
	case ModePrivateMax:
		return "private-max"
	case ModePrivateScoped:
		return "private-scoped"
	case ModeGroupScoped:
		return "group-scoped"
	case ModePublicMarkdown:
		return "public-markdown"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PublicConvergenceSeed is the fixed, publicly known seed used to derive the
// PublicMarkdown keypair. Spec §9 is explicit: this is an intentional design
// for global dedup that provides NO confidentiality against anyone who
// knows the seed. Callers must never use PublicMarkdown for content that
// requires confidentiality.
const PublicConvergenceSeed = "communitas-storage-public-markdown-convergence-v1"

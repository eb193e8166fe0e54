package auth

import (
	"strings"

	"hackhub/internal/role"
)

const (
	LoginPath      = "/login"
	OnboardingPath = "/onboarding"
	HomePath       = "/"
)

// Rule names the guard step that produced a decision.
type Rule string

const (
	RulePublic             Rule = "public"
	RuleNoSession          Rule = "no_session"
	RuleOnboardingRequired Rule = "onboarding_required"
	RuleOnboardingDone     Rule = "onboarding_done"
	RuleRolePrefix         Rule = "role_prefix"
	RuleAllow              Rule = "allow"
)

// Request is everything the guard needs about a navigation.
type Request struct {
	Path               string
	HasSession         bool
	OnboardingComplete bool
	Role               role.Role
}

// Decision is the guard's verdict. Redirect is empty when Allow is true.
type Decision struct {
	Allow    bool
	Redirect string
	Rule     Rule
}

var publicPrefixes = []string{"/static/", "/api/", "/assets/"}

var publicPaths = map[string]bool{
	HomePath:       true,
	LoginPath:      true,
	"/signup":      true,
	"/favicon.ico": true,
	"/healthz":     true,
	"/metrics":     true,
}

// IsPublic reports whether path is served without a session. API paths are public to the
// page guard; API handlers enforce sessions themselves.
func IsPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Decide applies the guard rules in order; the first match wins.
func Decide(req Request) Decision {
	switch {
	case IsPublic(req.Path):
		return Decision{Allow: true, Rule: RulePublic}
	case !req.HasSession:
		return Decision{Redirect: LoginPath, Rule: RuleNoSession}
	case !req.OnboardingComplete && !onOnboarding(req.Path):
		return Decision{Redirect: OnboardingPath, Rule: RuleOnboardingRequired}
	case req.OnboardingComplete && onOnboarding(req.Path):
		return Decision{Redirect: HomePath, Rule: RuleOnboardingDone}
	}

	seg := topSegment(req.Path)
	if root := role.DashboardRoot(req.Role); role.IsDashboardSegment(seg) && "/"+seg != root {
		return Decision{Redirect: root, Rule: RuleRolePrefix}
	}
	return Decision{Allow: true, Rule: RuleAllow}
}

func onOnboarding(path string) bool {
	return path == OnboardingPath || strings.HasPrefix(path, OnboardingPath+"/")
}

func topSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

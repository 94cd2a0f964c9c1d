package rbac

import (
	"net/http"
	"path"
	"strings"
)

// Access names the requirement attached to a rule.
type Access int

const (
	// PermitAll admits every request, authenticated or not.
	PermitAll Access = iota
	// Authenticated admits any bound principal regardless of role.
	Authenticated
	// AnyRole admits principals holding at least one of the rule's roles.
	AnyRole
)

// Decision is the outcome of evaluating a request against a policy.
type Decision int

const (
	// Allow lets the request continue.
	Allow Decision = iota
	// Unauthenticated rejects with 401.
	Unauthenticated
	// Forbidden rejects with 403.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Rule maps a method and ant-style path pattern to a requirement.
// An empty Method matches every method.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
	Roles   []string
}

// Matches reports whether the rule applies to method and p.
func (r Rule) Matches(method, p string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return MatchPattern(r.Pattern, p)
}

// Policy is an ordered rule list; the first matching rule wins.
type Policy struct {
	rules []Rule
}

// PublicPaths lists routes reachable without authentication.
var PublicPaths = []string{
	"/api/login",
	"/api/signup",
	"/api/auth/register",
	"/v3/api-docs/**",
	"/v2/api-docs/**",
	"/swagger-resources/**",
	"/swagger-ui/**",
	"/swagger-ui.html",
	"/webjars/**",
	"/configuration/ui",
	"/configuration/security",
	"/documentation/**",
	"/actuator/health",
}

// Role names used by the route table.
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
	RoleUser    = "USER"
)

// NewPolicy builds a policy from rules. A terminal "authenticated" rule is
// appended so unmatched requests always require a principal.
func NewPolicy(rules ...Rule) *Policy {
	out := make([]Rule, 0, len(rules)+1)
	out = append(out, rules...)
	out = append(out, Rule{Pattern: "/**", Access: Authenticated})
	return &Policy{rules: out}
}

// DefaultPolicy returns the route table of the question bank API.
func DefaultPolicy() *Policy {
	rules := make([]Rule, 0, len(PublicPaths)+7)
	for _, p := range PublicPaths {
		rules = append(rules, Rule{Pattern: p, Access: PermitAll})
	}
	rules = append(rules,
		Rule{Method: http.MethodOptions, Pattern: "/**", Access: PermitAll},
		Rule{Method: http.MethodGet, Pattern: "/api/me", Access: Authenticated},
		Rule{Method: http.MethodGet, Pattern: "/api/*/search", Access: AnyRole, Roles: []string{RoleUser, RoleAdmin}},
		Rule{Method: http.MethodGet, Pattern: "/api/**", Access: AnyRole, Roles: []string{RoleUser, RoleAdmin}},
		Rule{Method: http.MethodPost, Pattern: "/api/**", Access: AnyRole, Roles: []string{RoleAdmin, RoleTeacher}},
		Rule{Method: http.MethodPut, Pattern: "/api/**", Access: AnyRole, Roles: []string{RoleAdmin, RoleTeacher}},
		Rule{Method: http.MethodDelete, Pattern: "/api/**", Access: AnyRole, Roles: []string{RoleAdmin}},
	)
	return NewPolicy(rules...)
}

// Rules returns a copy of the evaluated rule list.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Match returns the first rule matching the request.
func (p *Policy) Match(method, requestPath string) Rule {
	clean := cleanPath(requestPath)
	for _, r := range p.rules {
		if r.Matches(method, clean) {
			return r
		}
	}
	return Rule{Pattern: "/**", Access: Authenticated}
}

// Decide evaluates the request for principal, which may be nil.
func (p *Policy) Decide(method, requestPath string, principal *Principal) (Decision, Rule) {
	rule := p.Match(method, requestPath)
	switch rule.Access {
	case PermitAll:
		return Allow, rule
	case Authenticated:
		if principal == nil {
			return Unauthenticated, rule
		}
		return Allow, rule
	default:
		if principal == nil {
			return Unauthenticated, rule
		}
		if principal.HasAnyRole(rule.Roles...) {
			return Allow, rule
		}
		return Forbidden, rule
	}
}

// MatchPattern matches p against an ant-style pattern: "*" and "?" match
// within one segment, "**" matches zero or more whole segments.
func MatchPattern(pattern, p string) bool {
	return matchSegments(splitPath(pattern), splitPath(p))
}

func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(head, segs[0])
		if err != nil || !ok {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

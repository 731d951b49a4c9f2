// Package session decides where a client may go given its session state.
//
// Two guards run independently. The session gate is hard: a protected path
// without a session goes to the proof step. The completion hint is soft: an
// incomplete profile is pointed at the completion page but is never sent back
// to the proof step, and the completion page itself is always allowed.
package session

import (
	"strings"

	"github.com/alumni-api/internal/config"
)

// RouteState is everything the decision looks at.
type RouteState struct {
	HasSession       bool
	ProfileCompleted bool
	Path             string
	// InFlow marks a request that is part of a verification that just
	// succeeded, before the client has stored its new session.
	InFlow bool
}

// Decision is either Allow or a Redirect target.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

type Service interface {
	Decide(state RouteState) Decision
}

type service struct {
	routes config.Routes
	public map[string]bool
}

func NewService(routes config.Routes) Service {
	return &service{
		routes: routes,
		public: map[string]bool{"/": true, routes.Proof: true, "/signup": true},
	}
}

func (s *service) Decide(st RouteState) Decision {
	path := cleanPath(st.Path)
	authenticated := st.HasSession || st.InFlow

	if path == s.routes.Proof {
		if authenticated {
			return s.redirect(path, s.landing(st))
		}
		return Decision{Allow: true}
	}
	if s.public[path] {
		return Decision{Allow: true}
	}

	if !authenticated {
		return s.redirect(path, s.routes.Proof)
	}
	if !st.ProfileCompleted && path != s.routes.Complete {
		return s.redirect(path, s.routes.Complete)
	}
	return Decision{Allow: true}
}

// landing is where a freshly authenticated client goes.
func (s *service) landing(st RouteState) string {
	if !st.ProfileCompleted {
		return s.routes.Complete
	}
	return s.routes.Home
}

// redirect never sends a client to the path it is already on.
func (s *service) redirect(from, to string) Decision {
	if to == from {
		return Decision{Allow: true}
	}
	return Decision{Redirect: to}
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

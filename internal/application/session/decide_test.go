package session

import (
	"testing"

	"github.com/alumni-api/internal/config"
	"github.com/stretchr/testify/assert"
)

var routes = config.Routes{Proof: "/login", Complete: "/complete-profile", Home: "/dashboard"}

func TestDecide(t *testing.T) {
	svc := NewService(routes)

	tests := []struct {
		name  string
		state RouteState
		want  Decision
	}{
		{"anonymous on proof page", RouteState{Path: "/login"}, Decision{Allow: true}},
		{"anonymous on landing page", RouteState{Path: "/"}, Decision{Allow: true}},
		{"anonymous on protected page", RouteState{Path: "/dashboard"}, Decision{Redirect: "/login"}},
		{"anonymous on completion page", RouteState{Path: "/complete-profile"}, Decision{Redirect: "/login"}},
		{"session, complete, protected", RouteState{HasSession: true, ProfileCompleted: true, Path: "/dashboard"}, Decision{Allow: true}},
		{"session, incomplete, protected", RouteState{HasSession: true, Path: "/dashboard"}, Decision{Redirect: "/complete-profile"}},
		{"session, incomplete, completion page", RouteState{HasSession: true, Path: "/complete-profile"}, Decision{Allow: true}},
		{"session, complete, completion page", RouteState{HasSession: true, ProfileCompleted: true, Path: "/complete-profile"}, Decision{Allow: true}},
		{"session on proof page goes home", RouteState{HasSession: true, ProfileCompleted: true, Path: "/login"}, Decision{Redirect: "/dashboard"}},
		{"session on proof page, incomplete", RouteState{HasSession: true, Path: "/login"}, Decision{Redirect: "/complete-profile"}},
		{"mid-flow without stored session", RouteState{InFlow: true, Path: "/dashboard"}, Decision{Redirect: "/complete-profile"}},
		{"mid-flow on proof page", RouteState{InFlow: true, ProfileCompleted: true, Path: "/login"}, Decision{Redirect: "/dashboard"}},
		{"trailing slash and query", RouteState{Path: "/dashboard/?tab=1"}, Decision{Redirect: "/login"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Decide(tt.state))
		})
	}
}

func TestDecide_NeverRedirectsAuthenticatedToProof(t *testing.T) {
	svc := NewService(routes)
	paths := []string{"/", "/login", "/dashboard", "/complete-profile", "/profile/edit", ""}

	for _, p := range paths {
		for _, completed := range []bool{true, false} {
			for _, st := range []RouteState{
				{HasSession: true, ProfileCompleted: completed, Path: p},
				{InFlow: true, ProfileCompleted: completed, Path: p},
			} {
				d := svc.Decide(st)
				assert.NotEqual(t, "/login", d.Redirect, "%+v", st)
				assert.NotEqual(t, cleanPath(p), d.Redirect, "%+v", st)
			}
		}
	}
}

func TestDecide_FollowingRedirectsTerminates(t *testing.T) {
	svc := NewService(routes)
	for _, st := range []RouteState{
		{Path: "/dashboard"},
		{HasSession: true, Path: "/login"},
		{HasSession: true, ProfileCompleted: true, Path: "/login"},
	} {
		seen := map[string]bool{}
		for hops := 0; ; hops++ {
			d := svc.Decide(st)
			if d.Allow {
				break
			}
			assert.False(t, seen[d.Redirect], "loop via %s", d.Redirect)
			seen[d.Redirect] = true
			st.Path = d.Redirect
			if !assert.Less(t, hops, 3) {
				break
			}
		}
	}
}

package app

import "strings"

// Route identifies a screen.
type Route int

const (
	RouteLanding Route = iota
	RouteLogin
	RouteClientLogin
	RouteDashboard
	RouteRoom
	RouteReport
)

func (r Route) String() string {
	switch r {
	case RouteLanding:
		return "landing"
	case RouteLogin:
		return "login"
	case RouteClientLogin:
		return "client-login"
	case RouteDashboard:
		return "dashboard"
	case RouteRoom:
		return "room"
	case RouteReport:
		return "report"
	}
	return "unknown"
}

// Location is a resolved route and its path parameter.
type Location struct {
	Route Route
	Param string // join token for RouteRoom, session id for RouteReport
}

// Path renders the location back to its path.
func (l Location) Path() string {
	switch l.Route {
	case RouteLogin:
		return "/login"
	case RouteClientLogin:
		return "/client-login"
	case RouteDashboard:
		return "/dashboard"
	case RouteRoom:
		return "/room/" + l.Param
	case RouteReport:
		return "/report/" + l.Param
	}
	return "/"
}

// Guard is what route protection looks at.
type Guard struct {
	Authenticated bool   // a lawyer is logged in
	JoinToken     string // token issued by the client join flow
}

// Resolve maps path to a location. Unknown paths go to the landing page;
// protected paths without the right credentials go to the login page.
func Resolve(path string, g Guard) Location {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return Location{Route: RouteLanding}
	}

	switch path {
	case "/login":
		return Location{Route: RouteLogin}
	case "/client-login":
		return Location{Route: RouteClientLogin}
	case "/dashboard":
		if !g.Authenticated {
			return Location{Route: RouteLogin}
		}
		return Location{Route: RouteDashboard}
	}

	if token, ok := param(path, "/room/"); ok {
		if !g.Authenticated && (g.JoinToken == "" || token != g.JoinToken) {
			return Location{Route: RouteLogin}
		}
		return Location{Route: RouteRoom, Param: token}
	}
	if id, ok := param(path, "/report/"); ok {
		if !g.Authenticated {
			return Location{Route: RouteLogin}
		}
		return Location{Route: RouteReport, Param: id}
	}
	return Location{Route: RouteLanding}
}

// param extracts the single segment after prefix.
func param(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	v := strings.TrimPrefix(path, prefix)
	if v == "" || strings.Contains(v, "/") {
		return "", false
	}
	return v, true
}

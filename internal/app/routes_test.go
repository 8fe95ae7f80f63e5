package app

import "testing"

func TestResolvePublicRoutes(t *testing.T) {
	g := Guard{}
	if got := Resolve("/", g); got.Route != RouteLanding {
		t.Errorf("/ = %v", got.Route)
	}
	if got := Resolve("/login", g); got.Route != RouteLogin {
		t.Errorf("/login = %v", got.Route)
	}
	if got := Resolve("/client-login/", g); got.Route != RouteClientLogin {
		t.Errorf("/client-login/ = %v", got.Route)
	}
}

func TestResolveUnknownGoesHome(t *testing.T) {
	g := Guard{Authenticated: true}
	for _, path := range []string{"/nope", "/room/", "/room/a/b", "/report", "dashboard"} {
		if got := Resolve(path, g); got.Route != RouteLanding {
			t.Errorf("%q = %v, want landing", path, got.Route)
		}
	}
}

func TestResolveProtectedRoutes(t *testing.T) {
	if got := Resolve("/dashboard", Guard{}); got.Route != RouteLogin {
		t.Errorf("/dashboard logged out = %v, want login", got.Route)
	}
	if got := Resolve("/dashboard", Guard{Authenticated: true}); got.Route != RouteDashboard {
		t.Errorf("/dashboard logged in = %v", got.Route)
	}
	if got := Resolve("/report/s1", Guard{}); got.Route != RouteLogin {
		t.Errorf("/report/s1 logged out = %v, want login", got.Route)
	}
	got := Resolve("/report/s1", Guard{Authenticated: true})
	if got.Route != RouteReport || got.Param != "s1" {
		t.Errorf("/report/s1 = %+v", got)
	}
}

func TestResolveRoomGuard(t *testing.T) {
	if got := Resolve("/room/tok", Guard{}); got.Route != RouteLogin {
		t.Errorf("no credentials = %v, want login", got.Route)
	}
	if got := Resolve("/room/tok", Guard{JoinToken: "other"}); got.Route != RouteLogin {
		t.Errorf("mismatched join token = %v, want login", got.Route)
	}
	got := Resolve("/room/tok", Guard{JoinToken: "tok"})
	if got.Route != RouteRoom || got.Param != "tok" {
		t.Errorf("client join token = %+v", got)
	}
	if got := Resolve("/room/tok", Guard{Authenticated: true}); got.Route != RouteRoom {
		t.Errorf("lawyer = %v, want room", got.Route)
	}
}

func TestLocationPath(t *testing.T) {
	if got := (Location{Route: RouteRoom, Param: "tok"}).Path(); got != "/room/tok" {
		t.Errorf("Path = %q", got)
	}
	if got := (Location{Route: RouteDashboard}).Path(); got != "/dashboard" {
		t.Errorf("Path = %q", got)
	}
	if got := (Location{}).Path(); got != "/" {
		t.Errorf("Path = %q", got)
	}
}

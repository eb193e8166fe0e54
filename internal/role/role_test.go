package role

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"STUDENT", Student, true},
		{"admin", Admin, true},
		{" Master ", Master, true},
		{"", "", false},
		{"ROOT", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDashboardRoot(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{Student, "/student"},
		{Admin, "/admin"},
		{Master, "/master"},
		{"", "/student"},
		{"admin", "/student"},
		{"SUPERUSER", "/student"},
	}
	for _, tt := range tests {
		if got := DashboardRoot(tt.role); got != tt.want {
			t.Errorf("DashboardRoot(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestPrivilegedAndValid(t *testing.T) {
	if Student.Privileged() {
		t.Error("student must not be privileged")
	}
	if !Admin.Privileged() || !Master.Privileged() {
		t.Error("admin and master must be privileged")
	}
	if Role("admin").Valid() {
		t.Error("lower-case role must not be valid")
	}
	for _, r := range All {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
}

func TestIsDashboardSegment(t *testing.T) {
	for _, seg := range []string{"student", "admin", "master"} {
		if !IsDashboardSegment(seg) {
			t.Errorf("%q should be a dashboard segment", seg)
		}
	}
	for _, seg := range []string{"", "onboarding", "login", "Admin"} {
		if IsDashboardSegment(seg) {
			t.Errorf("%q should not be a dashboard segment", seg)
		}
	}
}

package user

import "testing"

func TestAccess(t *testing.T) {
	admin := Access{UserID: "a1", Email: "admin@test.za", Role: RoleAdmin}
	student := Access{UserID: "s1", Email: "s1@test.za", Role: RoleStudent}
	unprovisioned := Access{UserID: "u1", Email: "u1@test.za"}
	anonymous := Access{}

	tests := []struct {
		name      string
		acc       Access
		studentID string
		wantState AccessState
		wantCan   bool
	}{
		{name: "admin for any student", acc: admin, studentID: "s2", wantState: AuthenticatedAdmin, wantCan: true},
		{name: "student for self", acc: student, studentID: "s1", wantState: AuthenticatedNonAdmin, wantCan: true},
		{name: "student for another", acc: student, studentID: "s2", wantState: AuthenticatedNonAdmin},
		{name: "student for nobody", acc: student, studentID: "", wantState: AuthenticatedNonAdmin},
		{name: "no role for self", acc: unprovisioned, studentID: "u1", wantState: AuthenticatedNonAdmin},
		{name: "anonymous", acc: anonymous, studentID: "s1", wantState: Unauthenticated},
		{name: "admin role without identity", acc: Access{Role: RoleAdmin}, studentID: "s1", wantState: Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acc.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
			if got := tt.acc.CanActFor(tt.studentID); got != tt.wantCan {
				t.Errorf("CanActFor(%q) = %v, want %v", tt.studentID, got, tt.wantCan)
			}
		})
	}
}

func TestPasswordPolicy(t *testing.T) {
	usr := User{Name: "Yusuf Patel", Email: "yusuf.patel@test.za"}
	tests := []struct {
		pwd     string
		wantTag string
	}{
		{pwd: "Sh0rt!", wantTag: pwdMinLenTag},
		{pwd: "Has Sp4ce!", wantTag: pwdNoSpaceTag},
		{pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{pwd: "alllowercase1!", wantTag: pwdComplexityTag},
		{pwd: "NoDigits!!", wantTag: pwdComplexityTag},
		{pwd: "Yusuf.Patel1", wantTag: pwdAttrSimTag},
		{pwd: "Qw3rty!Zx9#"},
	}
	for _, tt := range tests {
		t.Run(tt.pwd, func(t *testing.T) {
			if got := passwordPolicyViolation(tt.pwd, usr.Name, usr.Email); got != tt.wantTag {
				t.Errorf("passwordPolicyViolation() = %q, want %q", got, tt.wantTag)
			}
		})
	}
	if err := CheckPasswordPolicy("Qw3rty!Zx9#", usr); err != nil {
		t.Errorf("CheckPasswordPolicy() unexpected error = %v", err)
	}
	if err := CheckPasswordPolicy("short", usr); err == nil {
		t.Error("CheckPasswordPolicy() expected an error")
	}
}

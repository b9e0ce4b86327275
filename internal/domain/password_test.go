package domain

import "testing"

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		password  string
		wantError bool
	}{
		{name: "valid", password: "Secret123", wantError: false},
		{name: "blank", password: "   ", wantError: true},
		{name: "too short", password: "abc12", wantError: true},
		{name: "too long", password: string(make([]byte, 73)), wantError: true},
		{name: "exact minimum", password: "12345678", wantError: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tc.password)
			if tc.wantError && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}

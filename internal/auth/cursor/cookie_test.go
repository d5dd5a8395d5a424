package cursor

import "testing"

func TestNormalizeCredential(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare value", "  user_01%3A%3Ajwt  ", "user_01%3A%3Ajwt", false},
		{"cookie pair", "WorkosCursorSessionToken=abc;", "abc", false},
		{"cookie header", "foo=bar; WorkosCursorSessionToken=abc; baz=1", "abc", false},
		{"empty", "   ", "", true},
		{"empty pair", "WorkosCursorSessionToken=", "", true},
		{"whitespace inside", "abc def", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCredential(tt.raw, "WorkosCursorSessionToken")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeCredential() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("NormalizeCredential() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCookieString(t *testing.T) {
	got := CookieString(SessionCookie("WorkosCursorSessionToken", "abc", ".cursor.com"))
	if want := "WorkosCursorSessionToken=abc; path=/; domain=.cursor.com"; got != want {
		t.Fatalf("CookieString() = %q, want %q", got, want)
	}
}

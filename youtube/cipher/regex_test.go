package cipher

import "testing"

func TestTryRegexDecipherInline(t *testing.T) {
	js := `function X(a){a=a.split("");a.reverse();a.splice(0,26);a.reverse();return a.join("")};`
	in := "ABCDEFGHIJKLMNabcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqr"
	out, ok := tryRegexDecipher(js, in)
	if !ok {
		t.Fatalf("regex decipher not applied")
	}
	runes := []rune(in)
	runes = regexReverse(runes)
	runes = regexSplice(runes, 26)
	runes = regexReverse(runes)
	expected := string(runes)
	if out != expected {
		t.Fatalf("got %q want %q", out, expected)
	}
}

func TestTryRegexDecipherObjectTransforms(t *testing.T) {
	js := `
		var obj = {
			rv: function(a) { return a.reverse(); },
			sp: function(a, b) { return a.splice(0, b); },
			sw: function(a, b) { var c = a[0]; a[0] = a[b % a.length]; a[b % a.length] = c; return a; }
		};
		function decipher(a) {
			a = a.split("");
			a = obj.rv(a);
			a = obj.sp(a, 2);
			a = obj.sw(a, 3);
			return a.join("");
		}
	`
	out, ok := tryRegexDecipher(js, "abcdef")
	if !ok {
		t.Fatal("regex decipher not applied")
	}
	// reverse -> fedcba, splice(2) -> dcba, swap(3) -> acbd
	if out != "acbd" {
		t.Fatalf("got %q want %q", out, "acbd")
	}
}

func TestTryRegexDecipherRejectsUnknownShape(t *testing.T) {
	cases := []string{
		"",
		"function test(a) { return a; }",
		"invalid javascript",
	}
	for _, js := range cases {
		if out, ok := tryRegexDecipher(js, "abcdef"); ok {
			t.Fatalf("expected no match for %q, got %q", js, out)
		}
	}
}

func TestTryPatternFallback(t *testing.T) {
	tests := []struct {
		name      string
		playerJS  string
		signature string
		expected  string
		shouldOk  bool
	}{
		{
			name:      "reverse pattern",
			playerJS:  `function reverse() { a.reverse(); a.join(""); }`,
			signature: "abc123",
			expected:  "321cba",
			shouldOk:  true,
		},
		{
			name:      "splice pattern",
			playerJS:  `function splice() { a.splice(2); }`,
			signature: "abc123",
			expected:  "c123",
			shouldOk:  true,
		},
		{
			name:      "no pattern",
			playerJS:  `function other() { }`,
			signature: "abc123",
			shouldOk:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := tryPatternFallback(tt.playerJS, tt.signature)
			if ok != tt.shouldOk {
				t.Errorf("tryPatternFallback() ok = %v, want %v", ok, tt.shouldOk)
			}
			if ok && result != tt.expected {
				t.Errorf("tryPatternFallback() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRegexSwap(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{name: "swap with n=0", input: "abcdef", n: 0, expected: "abcdef"},
		{name: "swap with n=1", input: "abcdef", n: 1, expected: "bacdef"},
		{name: "swap with n=3", input: "abcdef", n: 3, expected: "dbcaef"},
		{name: "swap with n > len", input: "abc", n: 10, expected: "bac"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(regexSwap([]rune(tt.input), tt.n))
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestBalancedBlock(t *testing.T) {
	s := `var x = { a: { b: 1 }, c: 2 };`
	open := 8
	if s[open] != '{' {
		t.Fatalf("test setup wrong, s[%d]=%q", open, s[open])
	}
	got := balancedBlock(s, open)
	want := ` a: { b: 1 }, c: 2 `
	if got != want {
		t.Fatalf("balancedBlock got %q want %q", got, want)
	}

	if balancedBlock("{never closed", 0) != "" {
		t.Fatal("unbalanced block should return empty string")
	}
	if balancedBlock("no brace", 0) != "" {
		t.Fatal("non-brace start should return empty string")
	}
}

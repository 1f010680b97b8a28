package topicfilter

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/b/d", false},
		{"a/#", "a/b/c/d", true},
		{"a/#", "a", true},
		{"a/+", "a/b/c", false},
		{"test/topic", "test/topic", true},
		{"test/topic", "test/other", false},
		{"+/+", "test/topic", true},
		{"#", "any/topic/here", true},
		{"test/topic/#", "test/topic", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"_vs_"+tt.topic, func(t *testing.T) {
			if got := Match(tt.filter, tt.topic); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestValidateRejectsMisplacedHash(t *testing.T) {
	if err := Validate("#/a"); err == nil {
		t.Fatal("expected error for '#' not in final position")
	}
}

func TestValidateRejectsAdjacentWildcard(t *testing.T) {
	if err := Validate("a/b+"); err == nil {
		t.Fatal("expected error for '+' not occupying full level")
	}
	if err := Validate("a/#b"); err == nil {
		t.Fatal("expected error for '#' not occupying full level")
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := Validate(""); err == nil {
		t.Fatal("expected error for empty filter")
	}
}

func TestValidateRejectsOversize(t *testing.T) {
	big := make([]byte, MaxLength+1)
	for i := range big {
		big[i] = 'a'
	}
	if err := Validate(string(big)); err == nil {
		t.Fatal("expected error for oversize filter")
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	for _, f := range []string{"a", "a/+/c", "a/#", "+/+/#", "sensors/+/temperature"} {
		if err := Validate(f); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", f, err)
		}
	}
}

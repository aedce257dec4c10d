package auth

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "a"},
		{"ab", "a*"},
		{"abc", "a**"},
		{"abcd", "ab**"},
		{"abcde", "ab***"},
		{"abcdef", "abc*ef"},
		{"abcdefgh", "abc***gh"},
		{"홍길동", "홍**"},
		{"김철수영희야", "김철수*희야"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := MaskUsername(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, utf8.RuneCountInString(tt.in), utf8.RuneCountInString(got))
		})
	}
}

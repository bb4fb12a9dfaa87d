package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain text untouched", in: "Процедура Сообщить()", want: "Процедура Сообщить()"},
		{name: "keeps line breaks and tabs", in: "a\n\tb\r\nc", want: "a\n\tb\r\nc"},
		{name: "drops c0 controls", in: "a\x00b\x07c", want: "abc"},
		{name: "drops zero width space", in: "a​b", want: "ab"},
		{name: "drops format characters", in: "a‎b\uFEFFc", want: "abc"},
		{name: "nfkc folds compatibility forms", in: "ﬁle ①", want: "file 1"},
		{name: "preserves emoji", in: "🔍 поиск", want: "🔍 поиск"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app/(auth)/[id] file.tsx", "app/auth/id_file.tsx"},
		{"modernized_stack/backend/main.py", "modernized_stack/backend/main.py"},
		{`pages/{slug}.js`, "pages/slug.js"},
		{"a  b/c", "a_b/c"},
		{"weird//double///slash", "weird/double/slash"},
		{`quo"ted'name.js`, "quotedname.js"},
	}
	for _, tt := range tests {
		got := SanitizePath(tt.in)
		assert.Equal(t, tt.want, got)
		assert.NotContains(t, got, "(")
		assert.NotContains(t, got, "[")
		assert.NotContains(t, got, " ")
		assert.NotContains(t, got, "__")
		assert.NotContains(t, got, "//")
	}
}

package templates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileInlineAndRender(t *testing.T) {
	renderer := NewRenderer()

	tmpl, err := renderer.CompileInline("error", `{{ .status }}: {{ .message | upper }}`)
	require.NoError(t, err)
	require.NotNil(t, tmpl)

	out, err := tmpl.Render(map[string]any{"status": 401, "message": "authentication required"})
	require.NoError(t, err)
	require.Equal(t, "401: AUTHENTICATION REQUIRED", out)
}

func TestCompileInlineEmptySourceIsOptional(t *testing.T) {
	renderer := NewRenderer()

	tmpl, err := renderer.CompileInline("error", "   \n\t")
	require.NoError(t, err)
	require.Nil(t, tmpl)
}

func TestCompileInlineRejectsBadSyntax(t *testing.T) {
	_, err := NewRenderer().CompileInline("error", `{{ .status `)
	require.Error(t, err)
}

func TestRestrictedHelpersUnavailable(t *testing.T) {
	renderer := NewRenderer()

	for _, source := range []string{
		`{{ env "HOME" }}`,
		`{{ expandenv "$HOME" }}`,
		`{{ readFile "/etc/passwd" }}`,
	} {
		_, err := renderer.CompileInline("restricted", source)
		require.Error(t, err, "template %q must not compile", source)
	}
}

func TestNilTemplateRenderFails(t *testing.T) {
	var tmpl *Template
	_, err := tmpl.Render(nil)
	require.Error(t, err)
}

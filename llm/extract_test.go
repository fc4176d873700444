package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCode(t *testing.T) {
	assert.Equal(t, "print('hi')", CleanCode("```python\nprint('hi')\n```"))
	assert.Equal(t, "const x = 1;", CleanCode("```javascript\nconst x = 1;\n```"))
	assert.Equal(t, "plain text", CleanCode("  plain text  "))
}

func TestParseFileSet(t *testing.T) {
	raw := "```json\n{\"files\": [{\"filename\": \"backend/main.py\", \"content\": \"print(1)\"}], \"entrypoint\": \"backend/main.py\"}\n```"
	set := ParseFileSet(raw)
	require.Len(t, set.Files, 1)
	assert.Equal(t, "backend/main.py", set.Files[0].Filename)
	assert.Equal(t, "backend/main.py", set.Entrypoint)
}

func TestParseFileSetWithSurroundingProse(t *testing.T) {
	raw := `Here is your code:
{"files": [{"filename": "a.js", "content": "x"}], "entrypoint": "a.js"}
Let me know if you need changes.`
	set := ParseFileSet(raw)
	require.Len(t, set.Files, 1)
	assert.Equal(t, "a.js", set.Files[0].Filename)
}

func TestParseFileSetFallback(t *testing.T) {
	set := ParseFileSet("I could not generate code because of reasons.")
	require.Len(t, set.Files, 1)
	assert.Equal(t, "error.log", set.Files[0].Filename)
	assert.Equal(t, "error.log", set.Entrypoint)
	assert.Contains(t, set.Files[0].Content, "reasons")
}

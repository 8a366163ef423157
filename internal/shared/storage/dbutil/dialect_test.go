package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindToQuestion(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		RebindToQuestion("SELECT * FROM t WHERE id = $1 AND name = $2"))
	assert.Equal(t, "UPDATE t SET role = $1::text", RebindToPositional("UPDATE t SET role = $1::text"))
	assert.Equal(t, "UPDATE t SET role = $1", StripPgCasts("UPDATE t SET role = $1::text"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", Placeholders(1, 1))
	assert.Equal(t, "$3, $4, $5", Placeholders(3, 3))
	assert.Equal(t, "", Placeholders(1, 0))
	assert.Equal(t, "$10, $11", Placeholders(10, 2))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_done\\`, EscapeLike(`100% _done\`))
	assert.Equal(t, "anxiety", EscapeLike("anxiety"))
}
